package records

// Record is the structured form of one uploaded CV. Name is the source file
// name and identifies the record across the working and submitted sets.
type Record struct {
	Name           string          `json:"name"`
	Experience     []Experience    `json:"experience"`
	Education      []Education     `json:"education"`
	Certifications []Certification `json:"certifications"`
	Skills         []Skill         `json:"skills"`
}

// Experience represents a work history entry.
type Experience struct {
	JobTitle    string `json:"jobTitle"`
	Company     string `json:"company"`
	Description string `json:"description"`
	YearsText   string `json:"yearsText"`
}

// Education represents an education entry.
type Education struct {
	DegreeField string `json:"degreeField"`
	School      string `json:"school"`
}

// Certification represents a certification entry.
type Certification struct {
	Title string `json:"title"`
}

// Skill represents a single skill entry.
type Skill struct {
	Title string `json:"title"`
}

// Clone returns a structural copy of r that shares no slices with it.
func (r Record) Clone() Record {
	out := Record{Name: r.Name}
	if r.Experience != nil {
		out.Experience = make([]Experience, len(r.Experience))
		copy(out.Experience, r.Experience)
	}
	if r.Education != nil {
		out.Education = make([]Education, len(r.Education))
		copy(out.Education, r.Education)
	}
	if r.Certifications != nil {
		out.Certifications = make([]Certification, len(r.Certifications))
		copy(out.Certifications, r.Certifications)
	}
	if r.Skills != nil {
		out.Skills = make([]Skill, len(r.Skills))
		copy(out.Skills, r.Skills)
	}
	return out
}

// Normalize replaces nil sections with empty ones so the record serializes
// with explicit empty lists.
func (r Record) Normalize() Record {
	if r.Experience == nil {
		r.Experience = []Experience{}
	}
	if r.Education == nil {
		r.Education = []Education{}
	}
	if r.Certifications == nil {
		r.Certifications = []Certification{}
	}
	if r.Skills == nil {
		r.Skills = []Skill{}
	}
	return r
}

// CloneAll deep-copies every record in the slice.
func CloneAll(in []Record) []Record {
	if in == nil {
		return nil
	}
	out := make([]Record, len(in))
	for i := range in {
		out[i] = in[i].Clone()
	}
	return out
}
