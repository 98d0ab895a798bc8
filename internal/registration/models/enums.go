package models

import dErrors "teamreg/pkg/domain-errors"

// Level is a team member's academic level.
// Invariant: the value must be one of the supported levels.
type Level string

const (
	LevelBachelor Level = "bachelor"
	LevelMaster   Level = "master"
	LevelPhD      Level = "phd"
)

var levelLabels = map[Level]string{
	LevelBachelor: "Bachelor",
	LevelMaster:   "Graduate Studies (Master)",
	LevelPhD:      "Graduate Studies (PhD)",
}

// ParseLevel constructs a Level from external input.
//
// Errors: returns CodeInvalidInput when the value is empty or unsupported.
func ParseLevel(s string) (Level, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "level cannot be empty")
	}
	l := Level(s)
	if !l.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid level")
	}
	return l, nil
}

func (l Level) IsValid() bool {
	_, ok := levelLabels[l]
	return ok
}

// Label returns the human-readable form used in exports. Unknown values
// render as their raw string.
func (l Level) Label() string {
	if label, ok := levelLabels[l]; ok {
		return label
	}
	return string(l)
}

func (l Level) String() string {
	return string(l)
}

// ProjectField is the competition track a team enters.
type ProjectField string

const (
	FieldHealth      ProjectField = "health"
	FieldEnergy      ProjectField = "energy"
	FieldEnvironment ProjectField = "environment"
)

var fieldLabels = map[ProjectField]string{
	FieldHealth:      "Health",
	FieldEnergy:      "Energy",
	FieldEnvironment: "Environment",
}

// ParseProjectField constructs a ProjectField from external input.
func ParseProjectField(s string) (ProjectField, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "project field cannot be empty")
	}
	f := ProjectField(s)
	if !f.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid project field")
	}
	return f, nil
}

func (f ProjectField) IsValid() bool {
	_, ok := fieldLabels[f]
	return ok
}

func (f ProjectField) Label() string {
	if label, ok := fieldLabels[f]; ok {
		return label
	}
	return string(f)
}

func (f ProjectField) String() string {
	return string(f)
}

// ProjectCategory is the kind of work a team submits.
type ProjectCategory string

const (
	CategoryStudentResearch      ProjectCategory = "student_research"
	CategoryPublishedResearch    ProjectCategory = "published_research"
	CategoryPrototype            ProjectCategory = "prototype"
	CategoryScienceCommunication ProjectCategory = "science_communication"
)

var categoryLabels = map[ProjectCategory]string{
	CategoryStudentResearch:      "Student Research Project",
	CategoryPublishedResearch:    "Published Scientific Research",
	CategoryPrototype:            "Prototype",
	CategoryScienceCommunication: "Science Translation and Simplification",
}

// ParseProjectCategory constructs a ProjectCategory from external input.
func ParseProjectCategory(s string) (ProjectCategory, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "project category cannot be empty")
	}
	c := ProjectCategory(s)
	if !c.IsValid() {
		return "", dErrors.New(dErrors.CodeInvalidInput, "invalid project category")
	}
	return c, nil
}

func (c ProjectCategory) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

func (c ProjectCategory) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func (c ProjectCategory) String() string {
	return string(c)
}
