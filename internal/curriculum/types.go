package curriculum

// Skill represents one curriculum competence loaded from YAML or XLSX.
// Skills are immutable after loading; curriculum updates require a restart.
type Skill struct {
	Code            string   `yaml:"code" json:"code"`
	Name            string   `yaml:"name" json:"name"`
	Level           string   `yaml:"level" json:"level"`
	Domain          string   `yaml:"domain" json:"domain"`
	Subdomain       string   `yaml:"subdomain" json:"subdomain"`
	Prerequisites   []string `yaml:"prerequisites" json:"prerequisites"`
	QualitativeLeap bool     `yaml:"qualitative_leap" json:"qualitative_leap"`
}

// PrerequisiteOverride is an explicit extra prerequisite edge set for a
// skill, recorded outside the skill definitions themselves. Overrides are
// merged with (not substituted for) the declared prerequisites.
type PrerequisiteOverride struct {
	Skill         string   `yaml:"skill"`
	Prerequisites []string `yaml:"prerequisites"`
}

// overridesFile is the on-disk shape of prerequisite_overrides.yaml.
type overridesFile struct {
	Overrides []PrerequisiteOverride `yaml:"overrides"`
}
