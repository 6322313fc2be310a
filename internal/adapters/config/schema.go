package config

// manifestDTO mirrors the forge.toml layout.
type manifestDTO struct {
	Project  projectDTO               `toml:"project"`
	Board    boardRefDTO              `toml:"board"`
	Build    buildSettingsDTO         `toml:"build"`
	Packages map[string]packageRefDTO `toml:"packages"`
}

type projectDTO struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

type boardRefDTO struct {
	Name    string            `toml:"name"`
	Options map[string]string `toml:"options"`
}

type buildSettingsDTO struct {
	Jobs int `toml:"jobs"`
}

type packageRefDTO struct {
	Version string            `toml:"version"`
	Options map[string]string `toml:"options"`
}

// packageDTO mirrors the package.toml layout.
type packageDTO struct {
	Package packageMetaDTO          `toml:"package"`
	Source  sourceDTO               `toml:"source"`
	Build   buildDTO                `toml:"build"`
	Options map[string]optionDefDTO `toml:"options"`
	Install installDTO              `toml:"install"`
}

type packageMetaDTO struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description string   `toml:"description"`
	License     string   `toml:"license"`
	Depends     []string `toml:"depends"`
	Requires    []string `toml:"requires"`
}

type sourceDTO struct {
	URL    string `toml:"url"`
	SHA256 string `toml:"sha256"`

	Git    string `toml:"git"`
	Tag    string `toml:"tag"`
	Branch string `toml:"branch"`
	Rev    string `toml:"rev"`

	Files []sourceFileDTO `toml:"files"`
}

type sourceFileDTO struct {
	URL      string `toml:"url"`
	SHA256   string `toml:"sha256"`
	Filename string `toml:"filename"`
}

type buildDTO struct {
	Type          string         `toml:"type"`
	Steps         []buildStepDTO `toml:"steps"`
	ConfigureArgs []string       `toml:"configure_args"`
	MakeArgs      []string       `toml:"make_args"`
	Patches       []string       `toml:"patches"`
	Toolchain     toolchainDTO   `toml:"toolchain"`
}

type buildStepDTO struct {
	Run  string   `toml:"run"`
	Args []string `toml:"args"`
}

type toolchainDTO struct {
	Kind    string            `toml:"kind"`
	Libc    string            `toml:"libc"`
	Release string            `toml:"release"`
	URLs    map[string]string `toml:"urls"`
}

type optionDefDTO struct {
	Type        string   `toml:"type"`
	Default     string   `toml:"default"`
	Description string   `toml:"description"`
	Choices     []string `toml:"choices"`
	Pattern     string   `toml:"pattern"`
	Min         *float64 `toml:"min"`
	Max         *float64 `toml:"max"`
}

type installDTO struct {
	Script string           `toml:"script"`
	Files  []installRuleDTO `toml:"files"`
}

type installRuleDTO struct {
	Src string `toml:"src"`
	Dst string `toml:"dst"`
}

// boardDTO mirrors the boards/<name>.yaml layout.
type boardDTO struct {
	Name    string            `yaml:"name"`
	Target  string            `yaml:"target"`
	CPU     string            `yaml:"cpu"`
	Options map[string]string `yaml:"options"`
}
