package learning

import "testing"

func TestExtractorFromCodeFindsTypesRoutesAndFuncs(t *testing.T) {
	src := `package api

type User struct {
	ID   int    ` + "`json:\"id\"`" + `
	Name string ` + "`json:\"name\"`" + `
}

func RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/users", listUsers)
}

func listUsers(w http.ResponseWriter, r *http.Request) {}
`
	got := Extractor{}.FromCode(src, "api.go")

	var haveType, haveRoute, haveFunc bool
	for _, l := range got {
		switch l.Category {
		case CategoryType:
			if l.Fact == "type User is defined in api.go" {
				haveType = true
			}
		case CategoryAPI:
			if l.Fact == `route /users is registered in api.go` {
				haveRoute = true
			}
		case CategoryPattern:
			if l.Fact == "func listUsers is defined in api.go" {
				haveFunc = true
			}
		}
	}
	if !haveType {
		t.Errorf("expected a type learning for User, got %+v", got)
	}
	if !haveRoute {
		t.Errorf("expected a route learning for /users, got %+v", got)
	}
	if !haveFunc {
		t.Errorf("expected a pattern learning for listUsers, got %+v", got)
	}
}

func TestExtractorFromFixRecordsAFixLearning(t *testing.T) {
	l := Extractor{}.FromFix("compile", "added missing import of encoding/json")
	if l.Category != CategoryFix {
		t.Fatalf("expected category fix, got %s", l.Category)
	}
	if l.SourceFile != "compile" {
		t.Fatalf("expected source file set to the gate name, got %q", l.SourceFile)
	}
}
