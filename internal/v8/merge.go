package v8

import "sort"

// MergeProcessCovs folds any number of process dumps into one record.
// Scripts are keyed by URL, functions by name plus root range, and ranges by
// (start, end) with counts summed, so the merge is commutative and
// associative on counts: the same code measured across processes accumulates
// rather than overwrites.
//
// Source-map caches are not merged here; the caller absorbs them from the raw
// dumps before normalization rewrites URLs.
func MergeProcessCovs(dumps []ProcessCoverage) ProcessCoverage {
	var merged ProcessCoverage
	index := make(map[string]int)
	for _, dump := range dumps {
		for _, script := range dump.Result {
			at, ok := index[script.URL]
			if !ok {
				index[script.URL] = len(merged.Result)
				merged.Result = append(merged.Result, cloneScript(script))
				continue
			}
			mergeScript(&merged.Result[at], script)
		}
	}
	for i := range merged.Result {
		sortRanges(&merged.Result[i])
	}
	return merged
}

type functionKey struct {
	name       string
	start, end int
}

func mergeScript(into *ScriptCoverage, script ScriptCoverage) {
	index := make(map[functionKey]int, len(into.Functions))
	for i, fn := range into.Functions {
		index[keyOf(fn)] = i
	}
	for _, fn := range script.Functions {
		key := keyOf(fn)
		at, ok := index[key]
		if !ok {
			index[key] = len(into.Functions)
			into.Functions = append(into.Functions, cloneFunction(fn))
			continue
		}
		mergeFunction(&into.Functions[at], fn)
	}
}

func mergeFunction(into *FunctionCoverage, fn FunctionCoverage) {
	into.IsBlockCoverage = into.IsBlockCoverage || fn.IsBlockCoverage
	index := make(map[[2]int]int, len(into.Ranges))
	for i, r := range into.Ranges {
		index[[2]int{r.StartOffset, r.EndOffset}] = i
	}
	for _, r := range fn.Ranges {
		key := [2]int{r.StartOffset, r.EndOffset}
		at, ok := index[key]
		if !ok {
			index[key] = len(into.Ranges)
			into.Ranges = append(into.Ranges, r)
			continue
		}
		into.Ranges[at].Count += r.Count
	}
}

func keyOf(fn FunctionCoverage) functionKey {
	key := functionKey{name: fn.FunctionName}
	if len(fn.Ranges) > 0 {
		key.start = fn.Ranges[0].StartOffset
		key.end = fn.Ranges[0].EndOffset
	}
	return key
}

// sortRanges restores the outer-before-inner ordering the converter relies
// on: ascending start offset, then descending end offset.
func sortRanges(script *ScriptCoverage) {
	for i := range script.Functions {
		ranges := script.Functions[i].Ranges
		sort.SliceStable(ranges, func(a, b int) bool {
			if ranges[a].StartOffset != ranges[b].StartOffset {
				return ranges[a].StartOffset < ranges[b].StartOffset
			}
			return ranges[a].EndOffset > ranges[b].EndOffset
		})
	}
}

func cloneScript(script ScriptCoverage) ScriptCoverage {
	out := script
	out.Functions = make([]FunctionCoverage, len(script.Functions))
	for i, fn := range script.Functions {
		out.Functions[i] = cloneFunction(fn)
	}
	return out
}

func cloneFunction(fn FunctionCoverage) FunctionCoverage {
	out := fn
	out.Ranges = append([]CoverageRange(nil), fn.Ranges...)
	return out
}
