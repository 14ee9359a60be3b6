package engine

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
	"github.com/yuin/gopher-lua/parse"
)

// Compile parses and compiles both code parts of program without running
// them, so syntax errors can be reported before a program reaches a twin.
func Compile(program Program) error {
	parts := []struct {
		stage LoadStage
		code  string
	}{
		{StageReusedCode, program.ReusedCode},
		{StageNewCode, program.NewCode},
	}
	for _, part := range parts {
		if part.code == "" {
			continue
		}
		chunk, err := parse.Parse(strings.NewReader(part.code), program.Name)
		if err != nil {
			return &LoadError{Program: program.Name, Stage: part.stage, Cause: err}
		}
		if _, err := lua.Compile(chunk, program.Name); err != nil {
			return &LoadError{Program: program.Name, Stage: part.stage, Cause: err}
		}
	}
	return nil
}
