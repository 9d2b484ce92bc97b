package natives

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kristofer/luna/pkg/value"
)

// fakeStack is a minimal value.NativeStack double good enough to drive a
// native function in isolation, without bringing in the whole VM.
type fakeStack struct {
	args    []value.Value
	results []value.Value
}

func (s *fakeStack) ArgCount() int             { return len(s.args) }
func (s *fakeStack) Arg(i int) value.Value     { return s.args[i] }
func (s *fakeStack) PushResults(vs ...value.Value) { s.results = vs }

func TestTypeFnReturnsInternedName(t *testing.T) {
	pool := value.NewDataPool()
	f := typeFn{pool: pool}
	s := &fakeStack{args: []value.Value{value.Number(1)}}
	require.NoError(t, f.Call(s))
	require.Len(t, s.results, 1)
	require.Equal(t, "number", s.results[0].AsString())
}

func TestTypeFnOnNoArgsReturnsNil(t *testing.T) {
	f := typeFn{pool: value.NewDataPool()}
	s := &fakeStack{}
	require.NoError(t, f.Call(s))
	require.True(t, s.results[0].IsNil())
}

func TestToStringFnFormatsNumber(t *testing.T) {
	pool := value.NewDataPool()
	f := toStringFn{pool: pool}
	s := &fakeStack{args: []value.Value{value.Number(42)}}
	require.NoError(t, f.Call(s))
	require.Equal(t, "42", s.results[0].AsString())
}

func TestToNumberFnParsesStrings(t *testing.T) {
	f := toNumberFn{}
	pool := value.NewDataPool()

	s := &fakeStack{args: []value.Value{pool.GetString(" 3.5 ")}}
	require.NoError(t, f.Call(s))
	require.Equal(t, value.Number(3.5), s.results[0])

	bad := &fakeStack{args: []value.Value{pool.GetString("not a number")}}
	require.NoError(t, f.Call(bad))
	require.True(t, bad.results[0].IsNil())
}

func TestLenFnOnTableAndString(t *testing.T) {
	f := lenFn{}
	pool := value.NewDataPool()

	tbl := pool.GetTable()
	tbl.Assign(pool.GetNumber(1), value.Number(10))
	tbl.Assign(pool.GetNumber(2), value.Number(20))
	s := &fakeStack{args: []value.Value{value.TableValue(tbl)}}
	require.NoError(t, f.Call(s))
	require.Equal(t, value.Number(2), s.results[0])

	strStack := &fakeStack{args: []value.Value{pool.GetString("hello")}}
	require.NoError(t, f.Call(strStack))
	require.Equal(t, value.Number(5), strStack.results[0])
}

func TestLenFnRejectsUnsizedValue(t *testing.T) {
	f := lenFn{}
	s := &fakeStack{args: []value.Value{value.Number(5)}}
	err := f.Call(s)
	require.Error(t, err)
	require.Contains(t, err.Error(), "length of a number value")
}

func TestRegisterBindsEveryNative(t *testing.T) {
	pool := value.NewDataPool()
	globals := pool.GetTable()
	Register(globals, pool)

	for _, name := range []string{"print", "type", "tostring", "tonumber", "len"} {
		v := globals.GetValue(pool.GetString(name))
		require.Equal(t, value.KindNative, v.Kind(), "expected %s to be bound", name)
	}
}
