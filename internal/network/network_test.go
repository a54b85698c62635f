package network

import (
	"math/rand/v2"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func threeStations(t *testing.T) (*Network, []StationID) {
	t.Helper()
	n := New()
	a := n.AddStation(orb.Point{0, 0}, Circle, Medium)
	b := n.AddStation(orb.Point{100, 0}, Triangle, Small)
	c := n.AddStation(orb.Point{200, 0}, Square, Large)
	return n, []StationID{a.ID, b.ID, c.ID}
}

func TestAddLine(t *testing.T) {
	n, ids := threeStations(t)

	l, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)
	assert.Equal(t, "Line 1", l.Name)
	assert.Equal(t, Colors[0], l.Color)
	assert.Equal(t, []StationID{ids[0], ids[1]}, l.Stations)

	_, err = n.AddLine(ids[0], ids[0], "")
	assert.ErrorIs(t, err, ErrInvalidAttachment)

	_, err = n.AddLine(ids[0], 999, "")
	assert.ErrorIs(t, err, ErrStationNotFound)

	l2, err := n.AddLine(ids[1], ids[2], "")
	require.NoError(t, err)
	assert.Equal(t, "Line 2", l2.Name)
	assert.Equal(t, Colors[1], l2.Color)
}

func TestNextLineNumberFillsGaps(t *testing.T) {
	n, ids := threeStations(t)
	_, err := n.AddLine(ids[0], ids[1], "Line 1")
	require.NoError(t, err)
	_, err = n.AddLine(ids[1], ids[2], "Line 3")
	require.NoError(t, err)
	assert.Equal(t, 2, n.NextLineNumber())
}

func TestLineBetweenIsUndirectedAndExact(t *testing.T) {
	n, ids := threeStations(t)
	l, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)

	assert.Same(t, l, n.LineBetween(ids[1], ids[0]))
	assert.Nil(t, n.LineBetween(ids[0], ids[2]))

	require.NoError(t, n.ExtendLine(l.ID, ids[2], Endpoint{Side: AtEnd}))
	assert.Nil(t, n.LineBetween(ids[0], ids[1]), "only exact two-station lines match")
}

func TestExtendLine(t *testing.T) {
	tests := []struct {
		name string
		at   Attachment
		want []int // indexes into ids
		err  error
	}{
		{"prepend", Endpoint{Side: AtStart}, []int{3, 0, 1, 2}, nil},
		{"append", Endpoint{Side: AtEnd}, []int{0, 1, 2, 3}, nil},
		{"middle", Middle{InsertIndex: 1}, []int{0, 3, 1, 2}, nil},
		{"middle at zero", Middle{InsertIndex: 0}, nil, ErrInvalidAttachment},
		{"middle past end", Middle{InsertIndex: 3}, nil, ErrInvalidAttachment},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n, ids := threeStations(t)
			d := n.AddStation(orb.Point{300, 0}, Star, Small)
			ids = append(ids, d.ID)
			l, err := n.AddLine(ids[0], ids[1], "")
			require.NoError(t, err)
			require.NoError(t, n.ExtendLine(l.ID, ids[2], Endpoint{Side: AtEnd}))

			err = n.ExtendLine(l.ID, d.ID, tt.at)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}
			require.NoError(t, err)
			var want []StationID
			for _, i := range tt.want {
				want = append(want, ids[i])
			}
			assert.Equal(t, want, l.Stations)
		})
	}
}

func TestExtendLineRejectsRepeat(t *testing.T) {
	n, ids := threeStations(t)
	l, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)
	err = n.ExtendLine(l.ID, ids[0], Endpoint{Side: AtEnd})
	assert.ErrorIs(t, err, ErrInvalidAttachment)
}

func TestCanExtend(t *testing.T) {
	n, ids := threeStations(t)
	l, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)

	assert.True(t, n.CanExtend(l.ID, ids[1], ids[2]))
	assert.True(t, n.CanExtend(l.ID, ids[2], ids[0]))
	assert.False(t, n.CanExtend(l.ID, ids[0], ids[1]), "both on line")
	d := n.AddStation(orb.Point{0, 300}, Heart, Small)
	assert.False(t, n.CanExtend(l.ID, ids[2], d.ID), "neither on line")
	assert.Len(t, n.ExtendableLines(ids[1], ids[2]), 1)
}

func TestAttachFrom(t *testing.T) {
	l := &Line{Stations: []StationID{1, 2, 3}}
	at, ok := AttachFrom(l, 1)
	require.True(t, ok)
	assert.Equal(t, Endpoint{Side: AtStart}, at)
	at, _ = AttachFrom(l, 3)
	assert.Equal(t, Endpoint{Side: AtEnd}, at)
	at, _ = AttachFrom(l, 2)
	assert.Equal(t, Middle{InsertIndex: 2}, at)
	_, ok = AttachFrom(l, 9)
	assert.False(t, ok)
}

func TestQueries(t *testing.T) {
	n, ids := threeStations(t)
	l1, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)
	require.NoError(t, n.ExtendLine(l1.ID, ids[2], Endpoint{Side: AtEnd}))
	l2, err := n.AddLine(ids[1], ids[2], "")
	require.NoError(t, err)

	assert.Equal(t, 1, n.StationLineCount(ids[0]))
	assert.Equal(t, 2, n.StationLineCount(ids[1]))
	assert.True(t, n.IsTransferStation(ids[2]))
	assert.False(t, n.IsTransferStation(ids[0]))

	d, ok := n.DistanceOnLine(l1.ID, ids[2], ids[0])
	assert.True(t, ok)
	assert.Equal(t, 2, d)
	_, ok = n.DistanceOnLine(l2.ID, ids[0], ids[1])
	assert.False(t, ok)

	assert.Same(t, l1, n.SharedLine(ids[1], ids[2]), "first line in creation order wins")
	assert.Nil(t, n.SharedLine(ids[0], 999))
	assert.Len(t, n.LinesServing(ids[2]), 2)
}

func TestSplitLine(t *testing.T) {
	n := New()
	var ids []StationID
	for i := range 5 {
		ids = append(ids, n.AddStation(orb.Point{float64(i) * 100, 0}, Shape(i), Small).ID)
	}
	l, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)
	for _, id := range ids[2:] {
		require.NoError(t, n.ExtendLine(l.ID, id, Endpoint{Side: AtEnd}))
	}

	res, err := n.SplitLine(l.ID, 1)
	require.NoError(t, err)
	require.NotNil(t, res.First)
	require.NotNil(t, res.Second)
	assert.Equal(t, ids[:2], res.First.Stations)
	assert.Equal(t, ids[2:], res.Second.Stations)
	assert.Equal(t, "Line 1A", res.First.Name)
	assert.Equal(t, "Line 1B", res.Second.Name)
	_, err = n.Line(l.ID)
	assert.ErrorIs(t, err, ErrLineNotFound)
	assert.Len(t, n.Lines(), 2)
}

func TestSplitLineTooShortRemoves(t *testing.T) {
	n, ids := threeStations(t)
	l, err := n.AddLine(ids[0], ids[1], "")
	require.NoError(t, err)
	require.NoError(t, n.ExtendLine(l.ID, ids[2], Endpoint{Side: AtEnd}))

	res, err := n.SplitLine(l.ID, 0)
	require.NoError(t, err)
	assert.Nil(t, res.First)
	assert.Nil(t, res.Second)
	assert.Empty(t, n.Lines())

	_, err = n.SplitLine(l.ID, 0)
	assert.ErrorIs(t, err, ErrLineNotFound)
}

func TestMutationsNotifyOnChange(t *testing.T) {
	n := New()
	calls := 0
	n.OnChange(func() { calls++ })

	a := n.AddStation(orb.Point{0, 0}, Circle, Small)
	b := n.AddStation(orb.Point{50, 0}, Square, Small)
	c := n.AddStation(orb.Point{90, 0}, Star, Small)
	assert.Equal(t, 3, calls)

	l, err := n.AddLine(a.ID, b.ID, "")
	require.NoError(t, err)
	require.NoError(t, n.ExtendLine(l.ID, c.ID, Endpoint{Side: AtEnd}))
	require.NoError(t, n.RemoveLine(l.ID))
	assert.Equal(t, 6, calls)

	require.Error(t, n.RemoveLine(l.ID))
	assert.Equal(t, 6, calls, "failed mutations do not notify")
}

func TestRestore(t *testing.T) {
	n := New()
	err := n.Restore(
		[]Station{{ID: 1, Shape: Circle, Size: Small, Capacity: 30}, {ID: 2, Shape: Star, Size: Large, Capacity: 100}},
		[]Line{{ID: 3, Name: "Line 1", Stations: []StationID{1, 2}}},
		4,
	)
	require.NoError(t, err)
	assert.Equal(t, 4, n.NextID())
	assert.NotNil(t, n.LineBetween(1, 2))

	err = n.Restore([]Station{{ID: 1}}, []Line{{ID: 2, Stations: []StationID{1, 5}}}, 6)
	assert.ErrorIs(t, err, ErrStationNotFound)
}

func TestRandomFreePosition(t *testing.T) {
	n := New()
	n.AddStation(orb.Point{100, 100}, Circle, Small)
	rng := rand.New(rand.NewPCG(1, 2))

	p, ok := n.RandomFreePosition(rng, SpawnArea, 40, 50)
	require.True(t, ok)
	assert.True(t, SpawnArea.Contains(p))
	assert.True(t, n.IsPositionFree(p, 40))
	assert.False(t, n.IsPositionFree(orb.Point{110, 100}, 40))

	tiny := orb.Bound{Min: orb.Point{100, 100}, Max: orb.Point{101, 101}}
	_, ok = n.RandomFreePosition(rng, tiny, 40, 5)
	assert.False(t, ok)
}

func TestShapeText(t *testing.T) {
	for _, s := range AllShapes() {
		b, err := s.MarshalText()
		require.NoError(t, err)
		var back Shape
		require.NoError(t, back.UnmarshalText(b))
		assert.Equal(t, s, back)
	}
	_, err := ParseShape("hexagon")
	assert.Error(t, err)
	assert.Equal(t, 30, Small.Capacity())
	assert.Equal(t, 60, Medium.Capacity())
	assert.Equal(t, 100, Large.Capacity())
}
