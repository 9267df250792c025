package engine

import (
	"fmt"
	"strings"

	"ssashelper/src/helpers"
	"ssashelper/src/models"
	"ssashelper/src/projerrors"

	"go.uber.org/zap"
)

// Edition is the capability tier of the target server.
type Edition int

const (
	EditionEnterprise Edition = iota
	EditionStandard
	EditionDeveloper
	EditionEvaluation
)

var editionNames = []string{"Enterprise", "Standard", "Developer", "Evaluation"}

func (e Edition) String() string {
	if e < 0 || int(e) >= len(editionNames) {
		return fmt.Sprintf("Edition(%d)", int(e))
	}
	return editionNames[e]
}

// ParseEdition returns the edition named s. Names are case sensitive.
func ParseEdition(s string) (Edition, error) {
	for i, name := range editionNames {
		if name == s {
			return Edition(i), nil
		}
	}
	return 0, projerrors.ErrInvalidArgument.New(fmt.Sprintf("unknown edition %q (expected one of %s)", s, strings.Join(editionNames, ", ")))
}

// Standard edition limits.
const standardMaxPartitions = 3

type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
)

func (s Severity) String() string {
	if s == SeverityError {
		return "Error"
	}
	return "Warning"
}

// Diagnostic is one finding of a validation run.
type Diagnostic struct {
	Severity    Severity
	Object      string
	Description string
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Severity, d.Object, d.Description)
}

// Validator checks an assembled database against the rules of an edition.
type Validator struct {
	logger *zap.SugaredLogger
}

func NewValidator(logger *zap.SugaredLogger) *Validator {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Validator{logger: logger}
}

// Validate checks db for edition. It returns an error only for an unknown
// edition or a missing database; ok is false when any diagnostic is an Error.
func (v *Validator) Validate(db *models.Database, edition string) ([]Diagnostic, bool, error) {
	ed, err := ParseEdition(edition)
	if err != nil {
		return nil, false, err
	}
	if db == nil {
		return nil, false, projerrors.ErrInvalidArgument.New("database is required")
	}

	r := &validation{edition: ed}
	r.identity("Database", db.Object)

	r.category("DataSource", objects(db.DataSources, func(o *models.DataSource) models.Object { return o.Object }))
	r.category("DataSourceView", objects(db.DataSourceViews, func(o *models.DataSourceView) models.Object { return o.Object }))
	r.category("Role", objects(db.Roles, func(o *models.Role) models.Object { return o.Object }))
	r.category("Dimension", objects(db.Dimensions, func(o *models.Dimension) models.Object { return o.Object }))
	r.category("MiningStructure", objects(db.MiningStructures, func(o *models.MiningStructure) models.Object { return o.Object }))
	r.category("Cube", objects(db.Cubes, func(o *models.Cube) models.Object { return o.Object }))

	dataSources := helpers.NewSortedSet(ids(db.DataSources, func(o *models.DataSource) string { return o.ID })...)
	for _, dsv := range db.DataSourceViews {
		r.references("DataSourceView "+dsv.Name, dsv.Object, "DataSourceID", "data source", dataSources)
	}

	dimensions := helpers.NewSortedSet(ids(db.Dimensions, func(o *models.Dimension) string { return o.ID })...)
	for _, cube := range db.Cubes {
		r.references("Cube "+cube.Name, cube.Object, "Dimensions/Dimension/DimensionID", "dimension", dimensions)
		r.cube(cube)
	}

	ok := true
	for _, d := range r.diagnostics {
		if d.Severity == SeverityError {
			ok = false
		}
		v.logger.Debugf("Validation %s", d)
	}
	return r.diagnostics, ok, nil
}

func objects[T any](items []*T, object func(*T) models.Object) []models.Object {
	out := make([]models.Object, 0, len(items))
	for _, o := range items {
		out = append(out, object(o))
	}
	return out
}

func ids[T any](items []*T, id func(*T) string) []string {
	out := make([]string, 0, len(items))
	for _, o := range items {
		out = append(out, id(o))
	}
	return out
}

type validation struct {
	edition     Edition
	diagnostics []Diagnostic
}

func (r *validation) add(severity Severity, object, format string, args ...interface{}) {
	r.diagnostics = append(r.diagnostics, Diagnostic{
		Severity:    severity,
		Object:      object,
		Description: fmt.Sprintf(format, args...),
	})
}

func (r *validation) identity(kind string, o models.Object) {
	label := kind + " " + o.Name
	if strings.TrimSpace(o.ID) == "" {
		r.add(SeverityError, label, "ID is missing")
	}
	if strings.TrimSpace(o.Name) == "" {
		r.add(SeverityError, kind+" "+o.ID, "Name is missing")
	}
}

// category checks identity and uniqueness of IDs and names within one collection.
func (r *validation) category(kind string, items []models.Object) {
	seenIDs := make(map[string]bool, len(items))
	seenNames := make(map[string]bool, len(items))
	for _, o := range items {
		r.identity(kind, o)
		if o.ID != "" {
			if seenIDs[o.ID] {
				r.add(SeverityError, kind+" "+o.Name, "duplicate ID %q", o.ID)
			}
			seenIDs[o.ID] = true
		}
		if o.Name != "" {
			if seenNames[o.Name] {
				r.add(SeverityError, kind+" "+o.Name, "duplicate name")
			}
			seenNames[o.Name] = true
		}
	}
}

// references reports every element on path in o's body whose text is not a
// member of known.
func (r *validation) references(label string, o models.Object, path, target string, known helpers.SortedSet) {
	if o.Body == nil {
		return
	}
	for _, e := range o.Body.FindElements(path) {
		id := strings.TrimSpace(e.Text())
		if id != "" && !known.Contains(id) {
			r.add(SeverityError, label, "references unknown %s %q", target, id)
		}
	}
}

func (r *validation) cube(cube *models.Cube) {
	label := "Cube " + cube.Name
	seenGroups := make(map[string]bool, len(cube.MeasureGroups))
	seenPartitions := make(map[string]bool)

	for _, mg := range cube.MeasureGroups {
		mgLabel := label + "/" + mg.Name
		if seenGroups[mg.ID] {
			r.add(SeverityError, mgLabel, "duplicate measure group ID %q", mg.ID)
		}
		seenGroups[mg.ID] = true

		if len(mg.Partitions) == 0 {
			r.add(SeverityWarning, mgLabel, "measure group has no partitions")
		}
		if r.edition == EditionStandard && len(mg.Partitions) > standardMaxPartitions {
			r.add(SeverityError, mgLabel, "%d partitions exceed the %s edition limit of %d", len(mg.Partitions), r.edition, standardMaxPartitions)
		}

		designs := make([]string, 0, len(mg.AggregationDesigns))
		seenDesigns := make(map[string]bool, len(mg.AggregationDesigns))
		for _, a := range mg.AggregationDesigns {
			if seenDesigns[a.ID] {
				r.add(SeverityError, mgLabel, "duplicate aggregation design ID %q", a.ID)
			}
			seenDesigns[a.ID] = true
			designs = append(designs, a.ID)
		}
		known := helpers.NewSortedSet(designs...)

		for _, p := range mg.Partitions {
			pLabel := mgLabel + "/" + p.Name
			if seenPartitions[p.ID] {
				r.add(SeverityError, pLabel, "duplicate partition ID %q", p.ID)
			}
			seenPartitions[p.ID] = true

			r.references(pLabel, p.Object, "AggregationDesignID", "aggregation design", known)
			if r.edition == EditionStandard && p.Body != nil && p.Body.SelectElement("ProactiveCaching") != nil {
				r.add(SeverityError, pLabel, "proactive caching is not available in the %s edition", r.edition)
			}
		}
	}
}
