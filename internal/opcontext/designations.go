package opcontext

// Use is the coding identifying what a designation is for (synonym,
// fully-specified name, display).
type Use struct {
	System  string
	Code    string
	Display string
}

// Designation is one designation of a concept.
type Designation struct {
	Preferred bool
	Status    string
	Language  string
	Use       Use
	Value     string
	// Extensions carries url/value extension pairs attached to the
	// designation.
	Extensions map[string]string
}

type designationKey struct {
	language  string
	useSystem string
	useCode   string
	value     string
}

// Designations aggregates designations from multiple sources - native
// displays (marked preferred), native alternate designations and
// supplement designations - de-duplicating by (language, use, value).
type Designations struct {
	items []Designation
	seen  map[designationKey]int
}

// NewDesignations returns an empty collector.
func NewDesignations() *Designations {
	return &Designations{seen: make(map[designationKey]int)}
}

// Add merges one designation. A duplicate of an already collected
// designation is dropped, except that a preferred duplicate upgrades the
// kept entry's preferred flag.
func (d *Designations) Add(des Designation) {
	key := designationKey{
		language:  des.Language,
		useSystem: des.Use.System,
		useCode:   des.Use.Code,
		value:     des.Value,
	}
	if i, ok := d.seen[key]; ok {
		if des.Preferred {
			d.items[i].Preferred = true
		}
		return
	}
	d.seen[key] = len(d.items)
	d.items = append(d.items, des)
}

// AddDisplay records a native display as a preferred designation.
func (d *Designations) AddDisplay(lang, value string) {
	d.Add(Designation{Preferred: true, Language: lang, Value: value})
}

// List returns the collected designations in insertion order.
func (d *Designations) List() []Designation {
	return d.items
}

// PreferredIn returns the first collected designation whose language
// matches the operation context's chain and which is marked preferred.
func (d *Designations) PreferredIn(ctx *Context) (Designation, bool) {
	for _, des := range d.items {
		if des.Preferred && des.Language != "" && ctx.LanguageMatches(des.Language) {
			return des, true
		}
	}
	return Designation{}, false
}
