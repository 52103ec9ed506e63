package editor

import (
	"github.com/google/uuid"

	"cv-assistant/internal/records"
)

// SectionKind names one of the four editable record sections.
type SectionKind string

const (
	SectionExperience     SectionKind = "experience"
	SectionEducation      SectionKind = "education"
	SectionCertifications SectionKind = "certifications"
	SectionSkills         SectionKind = "skills"
)

// Sections lists the section kinds in display order.
var Sections = []SectionKind{SectionExperience, SectionEducation, SectionCertifications, SectionSkills}

var sectionFields = map[SectionKind][]string{
	SectionExperience:     {"jobTitle", "company", "description", "yearsText"},
	SectionEducation:      {"degreeField", "school"},
	SectionCertifications: {"title"},
	SectionSkills:         {"title"},
}

// ParseSection validates a section name.
func ParseSection(raw string) (SectionKind, error) {
	kind := SectionKind(raw)
	if _, ok := sectionFields[kind]; !ok {
		return "", ErrUnknownSection
	}
	return kind, nil
}

// Input is one tagged editable field.
type Input struct {
	Tag   string `json:"tag"`
	Value string `json:"value"`
}

// Row is one displayed entry. ID is stable for the lifetime of the view.
type Row struct {
	ID     string  `json:"id"`
	Inputs []Input `json:"inputs"`
}

// Section holds the rows of one kind in display order.
type Section struct {
	Kind SectionKind `json:"kind"`
	Rows []Row       `json:"rows"`
}

// View is the editable rendering of one record.
type View struct {
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

func (v View) section(kind SectionKind) (*Section, bool) {
	for i := range v.Sections {
		if v.Sections[i].Kind == kind {
			return &v.Sections[i], true
		}
	}
	return nil, false
}

func (v View) clone() View {
	out := View{Name: v.Name, Sections: make([]Section, len(v.Sections))}
	for i, sec := range v.Sections {
		rows := make([]Row, len(sec.Rows))
		for j, row := range sec.Rows {
			rows[j] = Row{ID: row.ID, Inputs: append([]Input(nil), row.Inputs...)}
		}
		out.Sections[i] = Section{Kind: sec.Kind, Rows: rows}
	}
	return out
}

// Render builds the editable view of r with one row per section entry.
func Render(r records.Record) View {
	view := View{Name: r.Name, Sections: make([]Section, 0, len(Sections))}

	exp := Section{Kind: SectionExperience, Rows: make([]Row, 0, len(r.Experience))}
	for _, e := range r.Experience {
		exp.Rows = append(exp.Rows, newRow(map[string]string{
			"jobTitle":    e.JobTitle,
			"company":     e.Company,
			"description": e.Description,
			"yearsText":   e.YearsText,
		}, SectionExperience))
	}
	edu := Section{Kind: SectionEducation, Rows: make([]Row, 0, len(r.Education))}
	for _, e := range r.Education {
		edu.Rows = append(edu.Rows, newRow(map[string]string{
			"degreeField": e.DegreeField,
			"school":      e.School,
		}, SectionEducation))
	}
	certs := Section{Kind: SectionCertifications, Rows: make([]Row, 0, len(r.Certifications))}
	for _, c := range r.Certifications {
		certs.Rows = append(certs.Rows, newRow(map[string]string{"title": c.Title}, SectionCertifications))
	}
	skills := Section{Kind: SectionSkills, Rows: make([]Row, 0, len(r.Skills))}
	for _, s := range r.Skills {
		skills.Rows = append(skills.Rows, newRow(map[string]string{"title": s.Title}, SectionSkills))
	}

	view.Sections = append(view.Sections, exp, edu, certs, skills)
	return view
}

func newRow(values map[string]string, kind SectionKind) Row {
	tags := sectionFields[kind]
	row := Row{ID: uuid.NewString(), Inputs: make([]Input, 0, len(tags))}
	for _, tag := range tags {
		row.Inputs = append(row.Inputs, Input{Tag: tag, Value: values[tag]})
	}
	return row
}

// Capture rebuilds a record from the view. Each section present in the view
// becomes a fresh list of its rows in display order; deleted rows are absent.
// A section missing from the view keeps prior's entries. Unknown tags are
// ignored and missing tags read as empty.
func Capture(prior records.Record, v View) records.Record {
	out := prior.Clone()
	out.Name = prior.Name

	if sec, ok := v.section(SectionExperience); ok {
		out.Experience = make([]records.Experience, 0, len(sec.Rows))
		for _, row := range sec.Rows {
			f := fieldMap(row)
			out.Experience = append(out.Experience, records.Experience{
				JobTitle:    f["jobTitle"],
				Company:     f["company"],
				Description: f["description"],
				YearsText:   f["yearsText"],
			})
		}
	}
	if sec, ok := v.section(SectionEducation); ok {
		out.Education = make([]records.Education, 0, len(sec.Rows))
		for _, row := range sec.Rows {
			f := fieldMap(row)
			out.Education = append(out.Education, records.Education{
				DegreeField: f["degreeField"],
				School:      f["school"],
			})
		}
	}
	if sec, ok := v.section(SectionCertifications); ok {
		out.Certifications = make([]records.Certification, 0, len(sec.Rows))
		for _, row := range sec.Rows {
			out.Certifications = append(out.Certifications, records.Certification{Title: fieldMap(row)["title"]})
		}
	}
	if sec, ok := v.section(SectionSkills); ok {
		out.Skills = make([]records.Skill, 0, len(sec.Rows))
		for _, row := range sec.Rows {
			out.Skills = append(out.Skills, records.Skill{Title: fieldMap(row)["title"]})
		}
	}
	return out
}

func fieldMap(row Row) map[string]string {
	out := make(map[string]string, len(row.Inputs))
	for _, in := range row.Inputs {
		out[in.Tag] = in.Value
	}
	return out
}
