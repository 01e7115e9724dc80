// Package env loads configuration from environment variables, remembering
// every variable consulted so a command can report its environment surface.
package env

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	multierror "github.com/hashicorp/go-multierror"

	"github.com/nostrkit/relayd/config/secret"
)

// Var describes one environment variable a Loader consulted, together with
// the default that applies when the variable is unset.
type Var struct {
	env     string
	envType string
	def     interface{}
}

func (f Var) String() string {
	return fmt.Sprintf("%-40s %-12s (%v)", f.env, f.envType, f.def)
}

func (f Var) Name() string {
	return f.env
}

type Loader struct {
	vars map[string]Var // every var this loader has been asked about
	err  error
}

func NewLoader() *Loader {
	return &Loader{
		vars: make(map[string]Var),
	}
}

// Err returns the accumulated lookup errors, or nil if every parse succeeded.
func (l *Loader) Err() error {
	return l.err
}

// lookup records the var, then reports its value and whether it was set.
// Asking for the same variable twice is a programming error.
func (l *Loader) lookup(def interface{}, env, envType string) (string, bool) {
	if _, ok := l.vars[env]; ok {
		panic(fmt.Sprintf("environment variable %q consulted twice", env))
	}
	l.vars[env] = Var{
		env:     env,
		envType: envType,
		def:     def,
	}
	return os.LookupEnv(env)
}

func (l *Loader) fail(env string, err error) {
	l.err = multierror.Append(l.err, fmt.Errorf("env var: %q caused an error: %w", env, err))
}

// String overwrites fld when the env var is set.
func (l *Loader) String(fld *string, env string) {
	if val, ok := l.lookup(*fld, env, "string"); ok {
		*fld = val
	}
}

// Int overwrites fld when the env var is set, parsing the value as per Atoi.
// If the parse fails fld is left alone and the loader error grows.
func (l *Loader) Int(fld *int, env string) {
	val, ok := l.lookup(*fld, env, "int")
	if !ok {
		return
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		l.fail(env, err)
		return
	}
	*fld = i
}

// Bool overwrites fld when the env var is set, accepting the truthy and falsy
// strings of ParseBool. If the parse fails fld is left alone and the loader
// error grows.
func (l *Loader) Bool(fld *bool, env string) {
	val, ok := l.lookup(*fld, env, "bool")
	if !ok {
		return
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		l.fail(env, err)
		return
	}
	*fld = b
}

// Duration overwrites fld when the env var is set, parsing the value as per
// time.ParseDuration. If the parse fails fld is left alone and the loader
// error grows.
func (l *Loader) Duration(fld *time.Duration, env string) {
	val, ok := l.lookup(*fld, env, "Duration")
	if !ok {
		return
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		l.fail(env, err)
		return
	}
	*fld = d
}

// SecretFromFile reads the file named by the env var into fld. Note the small
// trap: any default is the secret's content, not a file path. When the env
// var is unset or empty fld keeps its default.
func (l *Loader) SecretFromFile(fld *secret.String, env string) {
	fn, ok := l.lookup(*fld, env, "file")
	if !ok || fn == "" {
		return
	}
	content, err := os.ReadFile(fn) // #nosec G304 - the whole point is reading the named file
	if err != nil {
		l.err = multierror.Append(l.err, fmt.Errorf("could not read secret file for %s: %w", env, err))
		return
	}
	*fld = secret.String(content)
}

type Vars []Var

// Sort orders the vars in place alphabetically.
func (v Vars) Sort() {
	sort.Slice(v, func(i, j int) bool {
		return v[i].env < v[j].env
	})
}

// SortUnique drops duplicate names and sorts what remains, in place. The
// receiver may shrink.
func (v *Vars) SortUnique() {
	byName := map[string]Var{}
	for _, e := range *v {
		byName[e.Name()] = e
	}
	unique := make(Vars, 0, len(byName))
	for _, e := range byName {
		unique = append(unique, e)
	}
	unique.Sort()
	*v = unique
}

// VarsUsed lists every variable this loader consulted, with long or multiline
// string defaults flattened for printing.
func (l *Loader) VarsUsed() Vars {
	vars := make(Vars, 0, len(l.vars))
	const maxDefaultLen = 80
	for _, v := range l.vars {
		if def, ok := v.def.(string); ok {
			def = strings.ReplaceAll(def, "\n", `\n`)
			if len(def) > maxDefaultLen {
				def = def[:maxDefaultLen] + " ..."
			}
			v.def = def
		}
		vars = append(vars, v)
	}
	vars.Sort()
	return vars
}

// ChangeDefault rewrites the default recorded for env, typically to mask a
// value that should not be printed.
func (l *Loader) ChangeDefault(env, def string) {
	prev, ok := l.vars[env]
	if !ok {
		return
	}
	prev.def = def
	l.vars[env] = prev
}
