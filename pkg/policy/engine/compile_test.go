package engine

import (
	"errors"
	"testing"
)

func TestCompile(t *testing.T) {
	tests := []struct {
		name      string
		program   Program
		wantStage LoadStage
	}{
		{
			name:    "valid",
			program: Program{Name: "ok", ReusedCode: "function helper() end", NewCode: "policy = function() helper() end"},
		},
		{
			name:    "runtime errors are not detected",
			program: Program{Name: "later", NewCode: "undefined_function()"},
		},
		{
			name:      "reused code syntax error",
			program:   Program{Name: "reused", ReusedCode: "function helper(", NewCode: "policy = nil"},
			wantStage: StageReusedCode,
		},
		{
			name:      "new code syntax error",
			program:   Program{Name: "new", NewCode: "policy = function() end end"},
			wantStage: StageNewCode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Compile(tt.program)
			if tt.wantStage == "" {
				if err != nil {
					t.Fatalf("Compile() error = %v", err)
				}
				return
			}
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Compile() error = %v, want *LoadError", err)
			}
			if loadErr.Stage != tt.wantStage || loadErr.Program != tt.program.Name {
				t.Errorf("LoadError = %+v, want stage %s", loadErr, tt.wantStage)
			}
		})
	}
}
