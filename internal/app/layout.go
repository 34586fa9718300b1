package app

import (
	"fmt"

	"github.com/dkeye/Meet/internal/domain"
)

type Viewport int

const (
	ViewportWide Viewport = iota
	ViewportNarrow
)

func ParseViewport(s string) (Viewport, error) {
	switch s {
	case "", "wide":
		return ViewportWide, nil
	case "narrow":
		return ViewportNarrow, nil
	}
	return 0, fmt.Errorf("unknown viewport %q", s)
}

func (v Viewport) String() string {
	if v == ViewportNarrow {
		return "narrow"
	}
	return "wide"
}

func (v Viewport) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

type LayoutMode int

const (
	ModePlaceholder LayoutMode = iota
	ModeGrid
	ModePresentation
)

func (m LayoutMode) String() string {
	switch m {
	case ModeGrid:
		return "grid"
	case ModePresentation:
		return "presentation"
	default:
		return "placeholder"
	}
}

func (m LayoutMode) MarshalText() ([]byte, error) { return []byte(m.String()), nil }

const ConnectingCaption = "connecting"

type TileSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// FilmstripTile is the fixed size of secondary tiles while presenting.
var FilmstripTile = TileSize{Width: 160, Height: 90}

type GridSpec struct {
	Mode     LayoutMode `json:"mode"`
	Columns  int        `json:"columns"`
	Rows     int        `json:"rows"`
	Centered bool       `json:"centered"`
	MaxSize  bool       `json:"max_size"`
	Caption  string     `json:"caption,omitempty"`
	// Filmstrip is set in presentation mode only.
	Filmstrip *TileSize `json:"filmstrip,omitempty"`
}

// Layout computes the grid for a wide viewport.
func Layout(count int, presentationActive bool) GridSpec {
	return LayoutFor(count, presentationActive, ViewportWide)
}

func LayoutFor(count int, presentationActive bool, vp Viewport) GridSpec {
	if count <= 0 {
		return GridSpec{Mode: ModePlaceholder, Columns: 1, Rows: 1, Centered: true, Caption: ConnectingCaption}
	}
	if presentationActive {
		size := FilmstripTile
		return GridSpec{Mode: ModePresentation, Columns: count, Rows: 1, Filmstrip: &size}
	}
	if count == 1 {
		return GridSpec{Mode: ModeGrid, Columns: 1, Rows: 1, Centered: true, MaxSize: true}
	}
	cols := columnsFor(count, vp)
	return GridSpec{Mode: ModeGrid, Columns: cols, Rows: (count + cols - 1) / cols}
}

func columnsFor(count int, vp Viewport) int {
	wide := vp == ViewportWide
	switch {
	case count == 2, count == 4:
		return 2
	case count <= 6:
		if wide {
			return 3
		}
		return 2
	case count <= 9:
		return 3
	default:
		if wide {
			return 4
		}
		return 3
	}
}

type Tile struct {
	ParticipantID domain.ParticipantID `json:"participant_id"`
	Name          string               `json:"name"`
	Local         bool                 `json:"local"`
	Kind          domain.TrackKind     `json:"kind"`
	Speaking      bool                 `json:"speaking"`
	// Live is false while the slot has no attached track.
	Live bool `json:"live"`
}

type Arrangement struct {
	Spec GridSpec `json:"spec"`
	// Main is the presenter's screen tile in presentation mode.
	Main *Tile `json:"main,omitempty"`
	// Tiles are the grid cells, or the filmstrip while presenting.
	Tiles []Tile `json:"tiles"`
	// Waiting is set while no remote participant is in the call.
	Waiting bool `json:"waiting"`
}

// Arrange orders the participants of snap into tiles: remote participants in
// join order, then the local one. The filmstrip uses the same order.
func Arrange(snap Snapshot, pres Presentation, vp Viewport) Arrangement {
	ordered := snap.Remote()
	remote := len(ordered)
	for _, p := range snap.Participants {
		if p.Local {
			ordered = append(ordered, p)
		}
	}

	arr := Arrangement{
		Spec:    LayoutFor(len(ordered), pres.IsActive(), vp),
		Tiles:   make([]Tile, 0, len(ordered)),
		Waiting: len(ordered) > 0 && remote == 0,
	}
	if arr.Waiting && arr.Spec.Caption == "" {
		arr.Spec.Caption = ConnectingCaption
	}
	if arr.Spec.Mode == ModePlaceholder {
		return arr
	}

	for _, p := range ordered {
		arr.Tiles = append(arr.Tiles, tileOf(snap, p, domain.TrackCamera))
	}
	if arr.Spec.Mode == ModePresentation {
		for _, p := range ordered {
			if p.ID == pres.Active {
				main := tileOf(snap, p, domain.TrackScreen)
				arr.Main = &main
				break
			}
		}
	}
	return arr
}

func tileOf(snap Snapshot, p domain.Participant, kind domain.TrackKind) Tile {
	t := Tile{ParticipantID: p.ID, Name: p.Name, Local: p.Local, Kind: kind, Speaking: p.Speaking}
	if b, ok := snap.Binding(p.ID, kind); ok {
		t.Live = b.State == domain.Attached || (b.Local && b.Track != nil)
	}
	return t
}
