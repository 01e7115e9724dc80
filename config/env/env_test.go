package env

import (
	"testing"
	"time"

	gocmp "github.com/google/go-cmp/cmp"
	"gotest.tools/v3/assert"
	"gotest.tools/v3/assert/cmp"
	"gotest.tools/v3/fs"

	"github.com/nostrkit/relayd/config/secret"
)

func TestLoader_FieldsUsed(t *testing.T) {
	l := NewLoader()
	defToken := secret.String("default-token")
	defGrace := 5 * time.Second
	defBinary := "nostr-rs-relay"
	defVerbose := true
	defPort := 7447
	l.SecretFromFile(&defToken, "RELAYD_TEST_TOKEN_FILE")
	l.Duration(&defGrace, "RELAYD_TEST_GRACE")
	l.String(&defBinary, "RELAYD_TEST_BINARY")
	defMOTD := `the relay is down for maintenance
the relay is down for maintenance
the relay is down for maintenance
the relay is down for maintenance
`
	l.String(&defMOTD, "RELAYD_TEST_MOTD")
	l.Bool(&defVerbose, "RELAYD_TEST_VERBOSE")
	l.Int(&defPort, "RELAYD_TEST_PORT")

	help := make([]string, len(l.VarsUsed()))
	for i, s := range l.VarsUsed() {
		help[i] = s.String()
	}

	// N.B. Alphabetical order
	expected := []string{
		"RELAYD_TEST_BINARY                       string       (nostr-rs-relay)",
		"RELAYD_TEST_GRACE                        Duration     (5s)",
		"RELAYD_TEST_MOTD                         string       " +
			`(the relay is down for maintenance\nthe relay is down for maintenance\nthe relay  ...)`,
		"RELAYD_TEST_PORT                         int          (7447)",
		"RELAYD_TEST_TOKEN_FILE                   file         (REDACTED)",
		"RELAYD_TEST_VERBOSE                      bool         (true)",
	}

	assert.Check(t, cmp.DeepEqual(help, expected))
}

func TestLoader_SecretFile(t *testing.T) {
	const tokenPathVar = "RELAYD_TEST_TOKEN_FILE"
	t.Run("good", func(t *testing.T) {
		const hideMe = "nsec1-super-secret-key"
		tokenFile := fs.NewFile(t, t.Name(), fs.WithContent(hideMe))
		defer tokenFile.Remove()
		t.Setenv(tokenPathVar, tokenFile.Path())

		tok := secret.String("")
		NewLoader().SecretFromFile(&tok, tokenPathVar)
		assert.Check(t, cmp.Equal(tok.Raw(), hideMe))
	})

	t.Run("empty file", func(t *testing.T) {
		tokenFile := fs.NewFile(t, t.Name(), fs.WithContent(""))
		defer tokenFile.Remove()
		t.Setenv(tokenPathVar, tokenFile.Path())

		tok := secret.String("")
		NewLoader().SecretFromFile(&tok, tokenPathVar)
		assert.Check(t, cmp.Equal(tok.Raw(), ""))

		// an empty file really does replace the default
		tok = "fallback"
		NewLoader().SecretFromFile(&tok, tokenPathVar)
		assert.Check(t, cmp.Equal(tok.Raw(), ""))
	})

	t.Run("var not set", func(t *testing.T) {
		tok := secret.String("default")
		NewLoader().SecretFromFile(&tok, tokenPathVar)
		assert.Check(t, cmp.Equal(tok.Raw(), "default"))
	})

	t.Run("var set empty", func(t *testing.T) {
		t.Setenv(tokenPathVar, "")

		tok := secret.String("default")
		NewLoader().SecretFromFile(&tok, tokenPathVar)
		assert.Check(t, cmp.Equal(tok.Raw(), "default"))
	})

	t.Run("file not found", func(t *testing.T) {
		t.Setenv(tokenPathVar, "i-really-hope-this-is-not-accidentally-a-file")

		tok := secret.String("default")
		l := NewLoader()
		l.SecretFromFile(&tok, tokenPathVar)

		assert.Check(t, cmp.ErrorContains(l.Err(), "no such file"))
		// and the default survives the failed read
		assert.Check(t, cmp.Equal(tok.Raw(), "default"))
	})
}

func TestLoader_String(t *testing.T) {
	const binaryVar = "RELAYD_TEST_BINARY"
	t.Run("good", func(t *testing.T) {
		t.Setenv(binaryVar, "nostr-rs-relay-v2")

		binary := ""
		NewLoader().String(&binary, binaryVar)
		assert.Check(t, cmp.Equal(binary, "nostr-rs-relay-v2"))
	})
	t.Run("env not set", func(t *testing.T) {
		binary := "nostr-rs-relay"
		NewLoader().String(&binary, binaryVar)
		assert.Check(t, cmp.Equal(binary, "nostr-rs-relay"))
	})
}

func TestLoader_Int(t *testing.T) {
	const portVar = "RELAYD_TEST_PORT"
	t.Run("good", func(t *testing.T) {
		t.Setenv(portVar, "7447")

		var port int
		NewLoader().Int(&port, portVar)
		assert.Check(t, cmp.Equal(port, 7447))
	})

	t.Run("env not set", func(t *testing.T) {
		port := 7000
		NewLoader().Int(&port, portVar)
		assert.Check(t, cmp.Equal(port, 7000))
	})

	t.Run("not an int", func(t *testing.T) {
		t.Setenv(portVar, "port-seven")

		l := NewLoader()

		port := 7000
		l.Int(&port, portVar)
		assert.Check(t, cmp.ErrorContains(l.Err(), "invalid syntax"))
		// the field keeps its default on a bad parse
		assert.Check(t, cmp.Equal(port, 7000))
	})
}

func TestLoader_Bool(t *testing.T) {
	const verboseVar = "RELAYD_TEST_VERBOSE"
	t.Run("good", func(t *testing.T) {
		t.Setenv(verboseVar, "true")

		var verbose bool
		NewLoader().Bool(&verbose, verboseVar)
		assert.Check(t, cmp.Equal(verbose, true))
	})

	t.Run("env not set", func(t *testing.T) {
		verbose := true
		NewLoader().Bool(&verbose, verboseVar)
		assert.Check(t, cmp.Equal(verbose, true))
	})

	t.Run("not a bool", func(t *testing.T) {
		t.Setenv(verboseVar, "loud")

		l := NewLoader()

		verbose := true
		l.Bool(&verbose, verboseVar)
		assert.Check(t, cmp.ErrorContains(l.Err(), "invalid syntax"))
		// the field keeps its default on a bad parse
		assert.Check(t, cmp.Equal(verbose, true))
	})
}

func TestLoader_Duration(t *testing.T) {
	const graceVar = "RELAYD_TEST_GRACE"
	t.Run("good", func(t *testing.T) {
		t.Setenv(graceVar, "30s")

		grace := 5 * time.Second
		NewLoader().Duration(&grace, graceVar)
		assert.Check(t, cmp.Equal(grace, 30*time.Second))
	})

	t.Run("env not set", func(t *testing.T) {
		grace := time.Minute
		NewLoader().Duration(&grace, graceVar)
		assert.Check(t, cmp.Equal(grace, time.Minute))
	})

	t.Run("not a duration", func(t *testing.T) {
		t.Setenv(graceVar, "three-weeks")

		l := NewLoader()

		grace := time.Minute
		l.Duration(&grace, graceVar)
		assert.Check(t, cmp.ErrorContains(l.Err(), "invalid duration"))
		// the field keeps its default on a bad parse
		assert.Check(t, cmp.Equal(grace, time.Minute))
	})
}

func TestLoader_ChangeDefault(t *testing.T) {
	l := NewLoader()
	binary := "nostr-rs-relay"
	l.String(&binary, "RELAYD_TEST_BINARY")
	l.ChangeDefault("RELAYD_TEST_BINARY", "masked")
	assert.Check(t, cmp.Equal(l.VarsUsed()[0].def, "masked"))

	// changing a var that was never consulted is a no-op
	l.ChangeDefault("RELAYD_TEST_NOT_A_VAR", "no-effect")
}

func TestLoader_Duplicate(t *testing.T) {
	l := NewLoader()
	binary := "nostr-rs-relay"
	l.String(&binary, "RELAYD_TEST_BINARY")
	assertPanic(t, func() {
		l.String(&binary, "RELAYD_TEST_BINARY")
	})
}

func TestLoader_MultipleError(t *testing.T) {
	t.Setenv("RELAYD_TEST_BAD_PORT", "port-seven")
	t.Setenv("RELAYD_TEST_BAD_VERBOSE", "loud")

	l := NewLoader()
	port := 0
	l.Int(&port, "RELAYD_TEST_BAD_PORT")
	verbose := true
	l.Bool(&verbose, "RELAYD_TEST_BAD_VERBOSE")

	assert.Check(t, cmp.ErrorContains(l.Err(), "2 errors occurred"))
}

func TestVars_SortUnique(t *testing.T) {
	vs := Vars{}
	v1 := Var{
		env:     "RELAYD_A",
		envType: "string",
		def:     "default",
	}
	v2 := Var{
		env:     "RELAYD_B",
		envType: "string",
		def:     "default",
	}
	vs = append(vs, v2)
	vs = append(vs, v1)
	vs = append(vs, v2)
	vs = append(vs, v1)

	// duplicates removed
	vs.SortUnique()
	assert.Check(t, cmp.DeepEqual(Vars{v1, v2}, vs, gocmp.AllowUnexported(Var{})))

	// already unique
	vs = Vars{}
	vs = append(vs, v2)
	vs = append(vs, v1)
	vs.SortUnique()
	assert.Check(t, cmp.DeepEqual(Vars{v1, v2}, vs, gocmp.AllowUnexported(Var{})))
}

func assertPanic(t *testing.T, f func()) {
	defer func() {
		if r := recover(); r == nil {
			t.Errorf("The code did not panic")
		}
	}()
	f()
}
