package eventlog

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKind_NamesRoundTrip(t *testing.T) {
	kinds := Kinds()
	require.Len(t, kinds, int(kindCount)-1)
	seen := map[string]bool{}
	for _, k := range kinds {
		name := k.String()
		assert.False(t, seen[name], "duplicate name %s", name)
		seen[name] = true
		back, ok := ParseKind(name)
		require.True(t, ok, name)
		assert.Equal(t, k, back)
	}
	_, ok := ParseKind("Invalid")
	assert.False(t, ok)
	assert.Equal(t, "EventKind(200)", EventKind(200).String())
}

func TestNewEntry_RejectsMismatchedPayload(t *testing.T) {
	assert.Panics(t, func() { NewEntry(KindDouble, 1, &RandomSeed{}) })
	assert.Panics(t, func() { NewEntry(KindDouble, 1, nil) })
	assert.NotPanics(t, func() { NewEntry(KindConvertToString, 1, &Convert{}) })
	assert.NotPanics(t, func() { NewEntry(KindConvertToNumber, 1, &Convert{}) })
}

func TestPayloadAs(t *testing.T) {
	e := NewEntry(KindDouble, 3, &Double{Value: 2.5})
	assert.Equal(t, 2.5, PayloadAs[*Double](&e).Value)
	assert.Panics(t, func() { PayloadAs[*String](&e) })

	c := NewEntry(KindConvertToBoolean, 4, &Convert{Result: BoolVar(true)})
	assert.True(t, PayloadAs[*Convert](&c).Result.Bool)
}

func TestVar_Identical(t *testing.T) {
	tests := []struct {
		name string
		a, b Var
		want bool
	}{
		{"nan", NumberVar(math.NaN()), NumberVar(math.NaN()), true},
		{"signed zero", NumberVar(math.Copysign(0, -1)), NumberVar(0), false},
		{"numbers", NumberVar(1), NumberVar(1), true},
		{"kinds", NumberVar(0), BoolVar(false), false},
		{"strings", StringVar("a"), StringVar("a"), true},
		{"tags", ObjectVar(3), ObjectVar(4), false},
		{"undefined", UndefinedVar(), UndefinedVar(), true},
		{"undefined vs null", UndefinedVar(), NullVar(), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Identical(tt.b))
		})
	}
}

func TestVarKind_Parse(t *testing.T) {
	for k := VarUndefined; k <= VarHole; k++ {
		back, ok := ParseVarKind(k.String())
		require.True(t, ok)
		assert.Equal(t, k, back)
	}
}

func TestClock(t *testing.T) {
	c := NewClock()
	assert.Equal(t, int64(0), c.Current())
	assert.Equal(t, int64(1), c.Next())
	assert.Equal(t, int64(2), c.Next())

	r := NewClockAt(40)
	assert.Equal(t, int64(41), r.Next())
}

func rootCall(time int64, depth int32) Entry {
	return NewEntry(KindCallExistingFunction, time, &CallExistingFunction{
		CallbackDepth: depth,
		Args:          []Var{ObjectVar(1), UndefinedVar()},
		Info:          &CallInfo{CallEventTime: time, TopLevelCallbackEventTime: time, LastSnapshotTime: -1},
	})
}

func TestIsRootCall(t *testing.T) {
	root := rootCall(5, 0)
	nested := rootCall(6, 1)
	other := NewEntry(KindDouble, 7, &Double{})
	assert.True(t, IsRootCall(&root))
	assert.False(t, IsRootCall(&nested))
	assert.False(t, IsRootCall(&other))
}

func TestAccessTimeInRootCallOrSnapshot(t *testing.T) {
	snap := NewEntry(KindSnapshot, 2, &Snapshot{Data: &SnapshotData{RestoreTime: 1}})
	info := AccessTimeInRootCallOrSnapshot(&snap)
	assert.Equal(t, TimeInfo{Time: 1, IsSnapshot: true}, info)

	root := rootCall(9, 0)
	info = AccessTimeInRootCallOrSnapshot(&root)
	assert.Equal(t, TimeInfo{Time: 9, IsRootCall: true}, info)

	PayloadAs[*CallExistingFunction](&root).Info.Snapshot = &SnapshotData{RestoreTime: 8}
	assert.True(t, AccessTimeInRootCallOrSnapshot(&root).HasJITSnapshot)

	nested := rootCall(10, 2)
	info = AccessTimeInRootCallOrSnapshot(&nested)
	assert.False(t, info.Found())
	assert.Equal(t, int64(-1), info.Time)
}

func fillLog(l *Log, n int) {
	for i := 1; i <= n; i++ {
		l.Append(NewEntry(KindDouble, int64(i), &Double{Value: float64(i)}))
	}
}

func TestLog_AppendAt(t *testing.T) {
	l := NewLog(4, nil)
	fillLog(l, 10)
	require.Equal(t, 10, l.Len())
	for i := range 10 {
		assert.Equal(t, int64(i+1), l.At(i).Time)
	}
	assert.Panics(t, func() { l.At(10) })

	first := l.At(0)
	l.Append(NewEntry(KindDouble, 11, &Double{}))
	assert.Same(t, first, l.At(0), "entries never move")

	assert.Panics(t, func() { l.Append(NewEntry(KindDouble, 11, &Double{})) }, "times must increase")
}

func TestLog_All(t *testing.T) {
	l := NewLog(3, nil)
	fillLog(l, 7)
	var times []int64
	for i, e := range l.All() {
		assert.Equal(t, l.At(i), e)
		times = append(times, e.Time)
		if i == 4 {
			break
		}
	}
	assert.Equal(t, []int64{1, 2, 3, 4, 5}, times)
}

func TestLog_Find(t *testing.T) {
	l := NewLog(2, nil)
	for _, tm := range []int64{2, 4, 6, 8} {
		l.Append(NewEntry(KindDouble, tm, &Double{}))
	}
	i, ok := l.Find(6)
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	i, ok = l.Find(5)
	assert.False(t, ok)
	assert.Equal(t, 2, i)
}

func TestLog_EvictBefore(t *testing.T) {
	l := NewLog(4, nil)
	fillLog(l, 10)

	var unloaded []int64
	unload := func(e *Entry) { unloaded = append(unloaded, e.Time) }

	assert.Equal(t, 0, l.EvictBefore(4, unload), "block 1..4 still holds time 4")
	assert.Equal(t, 4, l.EvictBefore(5, unload))
	assert.Equal(t, []int64{1, 2, 3, 4}, unloaded)
	require.Equal(t, 6, l.Len())
	assert.Equal(t, int64(5), l.At(0).Time)

	// The partially filled tail block is never evicted.
	assert.Equal(t, 4, l.EvictBefore(100, unload))
	assert.Equal(t, 2, l.Len())

	l.Close(unload)
	assert.Equal(t, 0, l.Len())
	assert.Len(t, unloaded, 10)
}
