package engine

import (
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// limitStrings wraps the library functions whose result can be much larger
// than their arguments so that they raise a Lua error instead of asking the
// Go runtime for an arbitrarily large block.
func limitStrings(L *lua.LState, limit int) {
	strlib, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable)
	if !ok {
		return
	}
	rep := strlib.RawGetString("rep")
	format := strlib.RawGetString("format")
	gsub := strlib.RawGetString("gsub")

	L.SetField(strlib, "rep", L.NewFunction(func(L *lua.LState) int {
		s := L.CheckString(1)
		n := L.CheckInt(2)
		if n > 0 && len(s) > 0 && n > limit/len(s) {
			L.RaiseError("string.rep: result longer than %d bytes", limit)
		}
		return callThrough(L, rep)
	}))

	L.SetField(strlib, "format", L.NewFunction(func(L *lua.LState) int {
		if !formatWidthsOK(L.CheckString(1)) {
			L.RaiseError("invalid format (width or precision too long)")
		}
		return callThrough(L, format)
	}))

	L.SetField(strlib, "gsub", L.NewFunction(func(L *lua.LState) int {
		str := L.CheckString(1)
		switch repl := L.Get(3).(type) {
		case lua.LString:
			// Matches do not overlap, so each %0..%9 in repl adds at most
			// len(str) over all matches together.
			if n := countMatches(L, gsub, str); n > 0 {
				bound := len(str) + n*len(repl) + strings.Count(string(repl), "%")*len(str)
				if bound > limit {
					L.RaiseError("string.gsub: result longer than %d bytes", limit)
				}
			}
		case *lua.LTable, *lua.LFunction:
			L.Replace(3, tallyReplacement(L, repl, len(str), limit))
		}
		return callThrough(L, gsub)
	}))

	if tablib, ok := L.GetGlobal(lua.TabLibName).(*lua.LTable); ok {
		concat := tablib.RawGetString("concat")
		L.SetField(tablib, "concat", L.NewFunction(func(L *lua.LState) int {
			if concatLength(L) > limit {
				L.RaiseError("table.concat: result longer than %d bytes", limit)
			}
			return callThrough(L, concat)
		}))
	}
}

// callThrough calls fn with the current arguments and returns all of its
// results.
func callThrough(L *lua.LState, fn lua.LValue) int {
	nargs := L.GetTop()
	L.Insert(fn, 1)
	L.Call(nargs, lua.MultRet)
	return L.GetTop()
}

// countMatches runs gsub with a replacement that keeps every match and
// returns the match count.
func countMatches(L *lua.LState, gsub lua.LValue, str string) int {
	keep := L.NewFunction(func(*lua.LState) int { return 0 })
	L.Push(gsub)
	L.Push(lua.LString(str))
	L.Push(L.Get(2))
	L.Push(keep)
	L.Push(L.Get(4))
	L.Call(4, 2)
	n := L.ToInt(-1)
	L.Pop(2)
	return n
}

// tallyReplacement wraps a table or function replacement so that the
// strings it produces are counted against limit.
func tallyReplacement(L *lua.LState, repl lua.LValue, base, limit int) *lua.LFunction {
	total := base
	return L.NewFunction(func(L *lua.LState) int {
		var out lua.LValue
		if t, ok := repl.(*lua.LTable); ok {
			out = L.GetTable(t, L.Get(1))
		} else {
			nargs := L.GetTop()
			L.Insert(repl, 1)
			L.Call(nargs, 1)
			out = L.Get(-1)
		}
		if s, ok := out.(lua.LString); ok {
			total += len(s)
		} else if n, ok := out.(lua.LNumber); ok {
			total += len(n.String())
		}
		if total > limit {
			L.RaiseError("string.gsub: result longer than %d bytes", limit)
		}
		L.Push(out)
		return 1
	})
}

// concatLength is the length table.concat would produce for the current
// arguments.
func concatLength(L *lua.LState) int {
	t := L.CheckTable(1)
	sep := L.OptString(2, "")
	n := t.Len()
	i := max(L.OptInt(3, 1), 1)
	j := min(L.OptInt(4, n), n)

	total := 0
	for k := i; k <= j; k++ {
		switch v := t.RawGetInt(k).(type) {
		case lua.LString:
			total += len(v)
		case lua.LNumber:
			total += len(v.String())
		}
		if k < j {
			total += len(sep)
		}
	}
	return total
}

// formatWidthsOK reports whether every directive in f has a width and a
// precision of at most two digits.
func formatWidthsOK(f string) bool {
	digits := func(i int) int {
		j := i
		for j < len(f) && f[j] >= '0' && f[j] <= '9' {
			j++
		}
		return j
	}
	for i := 0; i < len(f); i++ {
		if f[i] != '%' {
			continue
		}
		i++
		if i < len(f) && f[i] == '%' {
			continue
		}
		for i < len(f) && strings.IndexByte("-+ #0", f[i]) >= 0 {
			i++
		}
		end := digits(i)
		if end-i > 2 {
			return false
		}
		i = end
		if i < len(f) && f[i] == '.' {
			end = digits(i + 1)
			if end-(i+1) > 2 {
				return false
			}
			i = end
		}
	}
	return true
}
