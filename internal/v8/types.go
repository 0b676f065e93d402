// Package v8 models the raw coverage dumps a V8-based runtime writes to its
// coverage directory, one JSON file per process.
package v8

import "encoding/json"

// ProcessCoverage is one process's dump: script records plus the source-map
// cache the runtime captured for modules it loaded.
type ProcessCoverage struct {
	Result         []ScriptCoverage          `json:"result"`
	SourceMapCache map[string]SourceMapEntry `json:"source-map-cache,omitempty"`
}

// ScriptCoverage is the coverage record for one loaded module.
type ScriptCoverage struct {
	ScriptID  string             `json:"scriptId,omitempty"`
	URL       string             `json:"url"`
	Functions []FunctionCoverage `json:"functions"`
}

// FunctionCoverage holds byte-offset execution counts for one function.
// Ranges[0] spans the whole function; later ranges are nested blocks whose
// counts override the enclosing range for the offsets they cover.
type FunctionCoverage struct {
	FunctionName    string          `json:"functionName"`
	Ranges          []CoverageRange `json:"ranges"`
	IsBlockCoverage bool            `json:"isBlockCoverage"`
}

// CoverageRange is a half-open byte-offset interval with an execution count.
type CoverageRange struct {
	StartOffset int `json:"startOffset"`
	EndOffset   int `json:"endOffset"`
	Count       int `json:"count"`
}

// SourceMapEntry is a cached source map for one module URL. The runtime may
// retain only lineLengths, which is enough to reconstruct line boundaries
// without the original source text.
type SourceMapEntry struct {
	Data        json.RawMessage `json:"data,omitempty"`
	URL         string          `json:"url,omitempty"`
	LineLengths []int           `json:"lineLengths,omitempty"`
}

// SourceMap is the decoded shape of a SourceMapEntry's data payload.
type SourceMap struct {
	Version    int      `json:"version"`
	File       string   `json:"file,omitempty"`
	SourceRoot string   `json:"sourceRoot,omitempty"`
	Sources    []string `json:"sources,omitempty"`
	Names      []string `json:"names,omitempty"`
	Mappings   string   `json:"mappings,omitempty"`
}

// DecodeSourceMap parses the entry's data payload. Entries that carry only
// lineLengths have no payload; those return (nil, nil).
func (e SourceMapEntry) DecodeSourceMap() (*SourceMap, error) {
	if len(e.Data) == 0 {
		return nil, nil
	}
	var sm SourceMap
	if err := json.Unmarshal(e.Data, &sm); err != nil {
		return nil, err
	}
	return &sm, nil
}

// IsInteropBridge reports whether the script looks like a synthetic
// CJS/ESM interop wrapper: a single anonymous function with a single range.
// Such records duplicate the coverage of the real module they wrap and are
// applied only when no real record surfaces for the same path.
func (s ScriptCoverage) IsInteropBridge() bool {
	return len(s.Functions) == 1 &&
		s.Functions[0].FunctionName == "" &&
		len(s.Functions[0].Ranges) == 1
}
