package jobs

// Profile is a supported target device preset.
type Profile struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

var profiles = []Profile{
	{ID: "K1", Label: "Kindle 1"},
	{ID: "K11", Label: "Kindle 11"},
	{ID: "K2", Label: "Kindle 2"},
	{ID: "K34", Label: "Kindle Keyboard/Touch"},
	{ID: "K578", Label: "Kindle"},
	{ID: "KDX", Label: "Kindle DX/DXG"},
	{ID: "KPW", Label: "Kindle Paperwhite 1/2"},
	{ID: "KV", Label: "Kindle Paperwhite 3/4/Voyage/Oasis"},
	{ID: "KPW5", Label: "Kindle Paperwhite 5/Signature Edition"},
	{ID: "KO", Label: "Kindle Oasis 2/3/Paperwhite 12/Colorsoft 12"},
	{ID: "KS", Label: "Kindle Scribe"},
	{ID: "KoMT", Label: "Kobo Mini/Touch"},
	{ID: "KoG", Label: "Kobo Glo"},
	{ID: "KoGHD", Label: "Kobo Glo HD"},
	{ID: "KoA", Label: "Kobo Aura"},
	{ID: "KoAHD", Label: "Kobo Aura HD"},
	{ID: "KoAH2O", Label: "Kobo Aura H2O"},
	{ID: "KoAO", Label: "Kobo Aura ONE"},
	{ID: "KoN", Label: "Kobo Nia"},
	{ID: "KoC", Label: "Kobo Clara HD/Kobo Clara 2E"},
	{ID: "KoCC", Label: "Kobo Clara Colour"},
	{ID: "KoL", Label: "Kobo Libra H2O/Kobo Libra 2"},
	{ID: "KoLC", Label: "Kobo Libra Colour"},
	{ID: "KoF", Label: "Kobo Forma"},
	{ID: "KoS", Label: "Kobo Sage"},
	{ID: "KoE", Label: "Kobo Elipsa"},
	{ID: "Rmk1", Label: "reMarkable 1"},
	{ID: "Rmk2", Label: "reMarkable 2"},
	{ID: "RmkPP", Label: "reMarkable Paper Pro"},
	{ID: "OTHER", Label: "Other"},
}

var profileLabels = func() map[string]string {
	m := make(map[string]string, len(profiles))
	for _, p := range profiles {
		m[p.ID] = p.Label
	}
	return m
}()

// Profiles returns the device profile catalog in presentation order.
func Profiles() []Profile {
	out := make([]Profile, len(profiles))
	copy(out, profiles)
	return out
}

// ValidProfile reports whether id names a known device profile.
func ValidProfile(id string) bool {
	_, ok := profileLabels[id]
	return ok
}

// ProfileLabel returns the display label for a profile id, or the id itself
// when unknown.
func ProfileLabel(id string) string {
	if label, ok := profileLabels[id]; ok {
		return label
	}
	return id
}
