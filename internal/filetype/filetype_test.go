package filetype

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path   string
		single string
		start  string
	}{
		{"main.go", "//", "/*"},
		{"src/app.TS", "//", "/*"},
		{"script.py", "#", `"""`},
		{"deploy.sh", "#", ""},
		{"build/Makefile", "#", ""},
		{"query.sql", "--", "/*"},
		{"index.html", "", "<!--"},
		{"page.php", "//", "<?php /*"},
		{"unknown.xyz", "//", "/*"},
		{"noext", "//", "/*"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			d := ForPath(tt.path)
			assert.Equal(t, tt.single, d.SingleLine)
			assert.Equal(t, tt.start, d.ModuleStart)
		})
	}
}

func TestComment(t *testing.T) {
	assert.Equal(t, "/* hello */", ForPath("a.go").Comment("hello"))
	assert.Equal(t, "# one\n# two\n#", ForPath("a.sh").Comment("one\ntwo\n"))
	assert.Equal(t, "<!-- x - -> y -->", ForPath("a.html").Comment("x --> y"))
	assert.Equal(t, "/* a * /b */", ForPath("a.c").Comment("a */b"))
}

func TestLinePrefix(t *testing.T) {
	assert.Equal(t, "", ForPath("a.go").LinePrefix())
	assert.Equal(t, "# ", ForPath("a.rb").LinePrefix())
	assert.True(t, ForPath("a.lua").HasBlock())
	assert.False(t, ForPath("a.yaml").HasBlock())
}

func TestRegister(t *testing.T) {
	_, ok := Lookup(".zig")
	assert.False(t, ok)

	Register(".ZIG", Delimiters{SingleLine: "//"})
	d, ok := Lookup(".zig")
	assert.True(t, ok)
	assert.Equal(t, "//", d.SingleLine)
	assert.Contains(t, Extensions(), ".zig")
}
