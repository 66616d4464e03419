// Package invalidation implements the cache-invalidation bus: a declarative
// registry of per-entity-category key templates and the cascade rules that
// keep read caches consistent with entity mutations.
package invalidation

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// SchemaVersion is embedded in every computed key. Bumping it is the global
// invalidation epoch: old keys become unreachable and age out by TTL without
// anyone enumerating them.
const SchemaVersion = "v9"

// Category groups cache keys by the entity kind that changed.
type Category string

const (
	CategoryCourse       Category = "course"
	CategoryCurriculum   Category = "curriculum"
	CategoryEnrollment   Category = "enrollment"
	CategoryUser         Category = "user"
	CategoryNotification Category = "notification"
	CategoryWishlist     Category = "wishlist"
	CategoryAdmin        Category = "admin"
)

// Field names a context value a template needs.
type Field string

const (
	FieldCourseID   Field = "course_id"
	FieldItemID     Field = "item_id"
	FieldUserID     Field = "user_id"
	FieldCategoryID Field = "category_id"
)

// Context carries the entity identifiers a mutation site knows about.
// Zero-value (uuid.Nil) fields are treated as absent.
type Context struct {
	CourseID   uuid.UUID
	ItemID     uuid.UUID
	UserID     uuid.UUID
	CategoryID uuid.UUID
}

func (c Context) value(f Field) (string, bool) {
	var id uuid.UUID
	switch f {
	case FieldCourseID:
		id = c.CourseID
	case FieldItemID:
		id = c.ItemID
	case FieldUserID:
		id = c.UserID
	case FieldCategoryID:
		id = c.CategoryID
	}
	if id == uuid.Nil {
		return "", false
	}
	return id.String(), true
}

// Template couples a key pattern with the context fields it requires.
type Template struct {
	Pattern string
	Fields  []Field
}

// Resolve formats the template against the context. Returns ok=false when a
// required field is absent; a mutation site that does not know an identifier
// simply skips the templates that need it.
func (t Template) Resolve(ctx Context) (string, bool) {
	args := make([]any, 0, len(t.Fields))
	for _, f := range t.Fields {
		v, ok := ctx.value(f)
		if !ok {
			return "", false
		}
		args = append(args, v)
	}
	return Key(t.Pattern, args...), true
}

// registry is the single auditable table of every cache key family the
// system writes. Any new cached view gets a row here or it cannot be
// invalidated; scattered string literals are the failure mode this table
// exists to prevent.
var registry = map[Category][]Template{
	CategoryCourse: {
		{Pattern: "course_detail_%s", Fields: []Field{FieldCourseID}},
		{Pattern: "course_duration_%s", Fields: []Field{FieldCourseID}},
		{Pattern: "category_courses_%s", Fields: []Field{FieldCategoryID}},
		{Pattern: "courses_list_all"},
		{Pattern: "courses_list_featured"},
	},
	CategoryCurriculum: {
		{Pattern: "item_playback_%s", Fields: []Field{FieldItemID}},
	},
	CategoryEnrollment: {
		{Pattern: "enrollments_list_%s", Fields: []Field{FieldUserID}},
		{Pattern: "enrollment_summary_%s", Fields: []Field{FieldUserID}},
		{Pattern: "enrollment_status_%s_%s", Fields: []Field{FieldUserID, FieldCourseID}},
	},
	CategoryUser: {
		{Pattern: "user_profile_%s", Fields: []Field{FieldUserID}},
		{Pattern: "user_enrollments_%s", Fields: []Field{FieldUserID}},
		{Pattern: "user_notifications_%s", Fields: []Field{FieldUserID}},
		{Pattern: "user_wishlist_%s", Fields: []Field{FieldUserID}},
	},
	CategoryNotification: {
		{Pattern: "notifications_%s", Fields: []Field{FieldUserID}},
	},
	CategoryWishlist: {
		{Pattern: "wishlist_%s", Fields: []Field{FieldUserID}},
	},
	CategoryAdmin: {
		{Pattern: "admin_students_overview"},
		{Pattern: "admin_metrics_week"},
		{Pattern: "admin_metrics_month"},
		{Pattern: "admin_metrics_year"},
	},
}

// Templates returns the registered templates for a category.
func Templates(category Category) []Template {
	return registry[category]
}

// Resolve computes every resolvable key of a category against a context.
func Resolve(category Category, ctx Context) []string {
	templates := registry[category]
	keys := make([]string, 0, len(templates))
	for _, t := range templates {
		if key, ok := t.Resolve(ctx); ok {
			keys = append(keys, key)
		}
	}
	return keys
}

// Key computes the deterministic cache key for a pattern and its arguments:
// the formatted pattern plus the schema version, hashed so key length stays
// fixed regardless of template shape.
func Key(pattern string, args ...any) string {
	formatted := fmt.Sprintf(pattern, args...)
	sum := md5.Sum([]byte(formatted + "_" + SchemaVersion))
	return hex.EncodeToString(sum[:])
}

// Named key helpers for the read paths that populate these entries. Readers
// and the bus must derive keys from the same table or invalidation misses.

func CourseDetailKey(courseID uuid.UUID) string {
	return Key("course_detail_%s", courseID.String())
}

func CourseDurationKey(courseID uuid.UUID) string {
	return Key("course_duration_%s", courseID.String())
}

func ItemPlaybackKey(itemID uuid.UUID) string {
	return Key("item_playback_%s", itemID.String())
}

func EnrollmentListKey(userID uuid.UUID) string {
	return Key("enrollments_list_%s", userID.String())
}

func EnrollmentSummaryKey(userID uuid.UUID) string {
	return Key("enrollment_summary_%s", userID.String())
}
