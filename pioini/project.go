// Package pioini reads the upload settings of a PlatformIO project from its
// platformio.ini.
package pioini

import (
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/ini.v1"
)

const FileName = "platformio.ini"

var ErrNoEnv = errors.New("no environment in platformio.ini")

// interpolation is PlatformIO's ${section.option} reference
var interpolation = regexp.MustCompile(`\$\{([^.}]+)\.([^}]+)\}`)

// Project is a parsed platformio.ini
type Project struct {
	Dir  string
	file *ini.File
}

// Env holds the upload settings of one [env:NAME] section
type Env struct {
	Name           string
	Board          string
	Platform       string
	UploadPort     string
	UploadSpeed    int
	UploadProtocol string
	MonitorSpeed   int
}

// Load parses dir/platformio.ini
func Load(dir string) (*Project, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "could not read project")
	}

	f, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		SpaceBeforeInlineComment:   true,
		IgnoreInlineComment:        false,
	}, data)
	if err != nil {
		return nil, errors.Wrapf(err, "could not parse %s", path)
	}

	return &Project{Dir: dir, file: f}, nil
}

// Envs returns the environment names in file order
func (p *Project) Envs() []string {
	var names []string
	for _, s := range p.file.Sections() {
		if name, ok := strings.CutPrefix(s.Name(), "env:"); ok {
			names = append(names, name)
		}
	}
	return names
}

// DefaultEnv returns the first of [platformio] default_envs, or the first
// environment in the file
func (p *Project) DefaultEnv() (string, error) {
	if s, err := p.file.GetSection("platformio"); err == nil {
		if envs := list(s.Key("default_envs").String()); len(envs) > 0 {
			return envs[0], nil
		}
	}

	envs := p.Envs()
	if len(envs) == 0 {
		return "", ErrNoEnv
	}
	return envs[0], nil
}

// Env returns the upload settings for the named environment, or the default
// environment when name is empty
func (p *Project) Env(name string) (*Env, error) {
	if name == "" {
		var err error
		if name, err = p.DefaultEnv(); err != nil {
			return nil, err
		}
	}

	if _, err := p.file.GetSection("env:" + name); err != nil {
		return nil, errors.Wrapf(ErrNoEnv, "env:%s", name)
	}

	e := &Env{
		Name:           name,
		Board:          p.Get(name, "board"),
		Platform:       p.Get(name, "platform"),
		UploadPort:     p.Get(name, "upload_port"),
		UploadProtocol: p.Get(name, "upload_protocol"),
	}

	var err error
	if e.UploadSpeed, err = p.intValue(name, "upload_speed"); err != nil {
		return nil, err
	}
	if e.MonitorSpeed, err = p.intValue(name, "monitor_speed"); err != nil {
		return nil, err
	}

	return e, nil
}

// Get returns option of env:name, falling back to the common [env] section
// and expanding ${section.option} references
func (p *Project) Get(name, option string) string {
	return p.expand(p.raw(name, option), 0)
}

func (p *Project) raw(name, option string) string {
	for _, section := range []string{"env:" + name, "env"} {
		s, err := p.file.GetSection(section)
		if err != nil || !s.HasKey(option) {
			continue
		}
		return strings.TrimSpace(s.Key(option).String())
	}
	return ""
}

func (p *Project) expand(v string, depth int) string {
	if depth > 8 || !strings.Contains(v, "${") {
		return v
	}
	return interpolation.ReplaceAllStringFunc(v, func(ref string) string {
		m := interpolation.FindStringSubmatch(ref)
		s, err := p.file.GetSection(m[1])
		if err != nil || !s.HasKey(m[2]) {
			return ref
		}
		return p.expand(strings.TrimSpace(s.Key(m[2]).String()), depth+1)
	})
}

func (p *Project) intValue(name, option string) (int, error) {
	v := p.Get(name, option)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrapf(err, "env:%s %s", name, option)
	}
	return n, nil
}

// list splits a PlatformIO list value, which may be comma or newline
// separated
func list(v string) []string {
	var out []string
	for _, f := range strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == '\n' }) {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
