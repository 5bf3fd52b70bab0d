package seed

// Seed is the YAML document that populates accounts, URL replacements and
// initial settings.
type Seed struct {
	Accounts        []Account         `yaml:"accounts"`
	URLReplacements map[string]string `yaml:"url_replacements"`
	Settings        map[string]string `yaml:"settings"`
}

type Account struct {
	Username    string `yaml:"username"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Active      *bool  `yaml:"active"` // defaults to true
}

func (a Account) IsActive() bool {
	return a.Active == nil || *a.Active
}
