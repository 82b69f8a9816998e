package plugin

import (
	"buildcopy/internal/copier"
	"buildcopy/internal/log"
	"buildcopy/internal/match"
	"buildcopy/pkg/types"

	"github.com/spf13/afero"
)

// snapshot holds the entry names of each source at build start. It lives
// from one Start to the following Run.
type snapshot struct {
	entries map[string]map[string]struct{}
}

func newSnapshot() *snapshot {
	return &snapshot{entries: make(map[string]map[string]struct{})}
}

// record stores the current entry names of source. A source that does not
// exist yet is recorded as empty.
func (s *snapshot) record(e *copier.Engine, source string) {
	abs, err := e.Resolve(source)
	if err != nil {
		return
	}
	names := make(map[string]struct{})
	for _, name := range entryNames(e.Fs(), abs) {
		names[name] = struct{}{}
	}
	s.entries[abs] = names
}

// extend adds the literal names of entries created in source since the
// snapshot to the include list of f. Filters without includes keep every
// new entry already and are returned unchanged.
func (s *snapshot) extend(e *copier.Engine, source string, f types.Filter) types.Filter {
	if s == nil || len(f.Include) == 0 {
		return f
	}
	abs, err := e.Resolve(source)
	if err != nil {
		return f
	}
	before, ok := s.entries[abs]
	if !ok {
		return f
	}

	var added []string
	for _, name := range entryNames(e.Fs(), abs) {
		if _, seen := before[name]; !seen {
			added = append(added, match.Literal(name))
		}
	}
	if len(added) == 0 {
		return f
	}
	log.LogWithFields(log.F("source", abs), log.F("added", len(added))).Debug("Including entries created during build")
	return f.WithInclude(added...)
}

func entryNames(fs afero.Fs, dir string) []string {
	infos, err := afero.ReadDir(fs, dir)
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(infos))
	for _, info := range infos {
		names = append(names, info.Name())
	}
	return names
}
