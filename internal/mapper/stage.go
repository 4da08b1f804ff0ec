package mapper

import (
	_ "embed"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dealsync/internal/normalize"
	"github.com/sells-group/dealsync/internal/schema"
)

//go:embed stage_aliases.yaml
var stageAliasesYAML []byte

// stageAliases maps a folded label to a canonical stage id.
var stageAliases = mustLoadStageAliases(stageAliasesYAML)

func mustLoadStageAliases(data []byte) map[string]string {
	aliases, err := loadStageAliases(data)
	if err != nil {
		panic(err)
	}
	return aliases
}

func loadStageAliases(data []byte) (map[string]string, error) {
	var byStage map[string][]string
	if err := yaml.Unmarshal(data, &byStage); err != nil {
		return nil, eris.Wrap(err, "mapper: parse stage aliases")
	}
	out := make(map[string]string)
	for id, labels := range byStage {
		for _, l := range labels {
			out[normalize.Fold(l)] = id
		}
	}
	return out, nil
}

// ResolveStage finds the stage a raw label or id refers to: exact id first,
// then exact label, then the alias table. An alias only counts when its
// canonical id exists in sc.
func ResolveStage(sc *schema.Schema, raw string) (schema.StageRef, bool) {
	want := normalize.Fold(raw)
	if want == "" {
		return schema.StageRef{}, false
	}
	stages := sc.Stages()
	for _, st := range stages {
		if normalize.Fold(st.ID) == want {
			return st, true
		}
	}
	for _, st := range stages {
		if normalize.Fold(st.Label) == want {
			return st, true
		}
	}
	if id, ok := stageAliases[want]; ok {
		return sc.StageByID(id)
	}
	return schema.StageRef{}, false
}
