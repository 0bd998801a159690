package roomgraph

// LayerSpec describes a layered problem's L copies of G canonical rooms
// (N = L*G).
type LayerSpec struct {
	L int
	G int
}

// ProblemSpec names one catalogue entry: a problem name, its room count,
// and, for layered problems, its layer spec.
type ProblemSpec struct {
	Name   string
	N      int
	Layers *LayerSpec
}

// IsLayered reports whether the problem is known to have a layered
// structure.
func (p ProblemSpec) IsLayered() bool {
	return p.Layers != nil
}

// DefaultCatalogue is the roster of named problems recovered from the
// original source, not just the six the distilled spec calls out by
// example. Layered classification and (L, G) are not hard fact about the
// oracle protocol, so pkg/config may override entries loaded from YAML;
// every entry of this slice that configuration does not override by name
// stays in the effective catalogue.
var DefaultCatalogue = []ProblemSpec{
	{Name: "probatio", N: 3},
	{Name: "primus", N: 6, Layers: &LayerSpec{L: 2, G: 3}},
	{Name: "secundus", N: 12, Layers: &LayerSpec{L: 2, G: 6}},
	{Name: "tertius", N: 18, Layers: &LayerSpec{L: 2, G: 9}},
	{Name: "quartus", N: 24, Layers: &LayerSpec{L: 2, G: 12}},
	{Name: "quintus", N: 30, Layers: &LayerSpec{L: 2, G: 15}},
	{Name: "aleph", N: 12},
	{Name: "beth", N: 24},
	{Name: "gimel", N: 36},
	{Name: "daleth", N: 48},
	{Name: "he", N: 60},
	{Name: "vau", N: 18},
	{Name: "zain", N: 36},
	{Name: "hhet", N: 54},
	{Name: "teth", N: 72},
	{Name: "iod", N: 90},
}

// FindProblem looks up a catalogue entry by name.
func FindProblem(catalogue []ProblemSpec, name string) (ProblemSpec, bool) {
	for _, p := range catalogue {
		if p.Name == name {
			return p, true
		}
	}
	return ProblemSpec{}, false
}
