package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"sort"
	"sync"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	. "github.com/elijahnyp/torch_sync/util"
	"github.com/google/uuid"
	"golang.org/x/image/vector"
)

const (
	markerName         = "torchsync-icon"
	markerIconPath     = "/marker.png"
	markerIconSize     = 24
	markerPadding      = 4
	markerOffsetX      = 30
	markerOffsetY      = -30
	markerZIndex       = 100
	markerOutlineWidth = 2
	circleSegments     = 64
)

var (
	markerBackground = color.RGBA{0x27, 0x27, 0x27, 0xff}
	markerOutline    = color.RGBA{0x00, 0x00, 0x00, 0xff}
	torchHandle      = color.RGBA{0x8b, 0x5a, 0x2b, 0xff}
	torchFlame       = color.RGBA{0xff, 0x9f, 0x1a, 0xff}
	torchFlameCore   = color.RGBA{0xff, 0xdd, 0x44, 0xff}
)

// MarkerSpec is what the host draws on an opted-in light.
type MarkerSpec struct {
	Handle       string `json:"handle"`
	Name         string `json:"name"`
	EntityID     string `json:"entity_id"`
	Icon         string `json:"icon"`
	Background   string `json:"background"`
	Outline      string `json:"outline"`
	OffsetX      int    `json:"offset_x"`
	OffsetY      int    `json:"offset_y"`
	IconSize     int    `json:"icon_size"`
	Padding      int    `json:"padding"`
	Size         int    `json:"size"`
	ZIndex       int    `json:"z_index"`
	OutlineWidth int    `json:"outline_width"`
}

func newMarkerSpec(entityID string) MarkerSpec {
	return MarkerSpec{
		Handle:       uuid.NewString(),
		Name:         markerName,
		EntityID:     entityID,
		Icon:         markerIconPath,
		Background:   hexColor(markerBackground),
		Outline:      hexColor(markerOutline),
		OffsetX:      markerOffsetX,
		OffsetY:      markerOffsetY,
		IconSize:     markerIconSize,
		Padding:      markerPadding,
		Size:         markerIconSize + 2*markerPadding,
		ZIndex:       markerZIndex,
		OutlineWidth: markerOutlineWidth,
	}
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// MarkerLayer keeps one marker per opted-in light. Attaching publishes the
// marker spec retained on the light's marker topic; detaching clears it.
type MarkerLayer struct {
	client  func() MQTT.Client
	topics  *Model
	markers map[string]MarkerSpec
	mu      sync.Mutex
}

func NewMarkerLayer(client func() MQTT.Client, topics *Model) *MarkerLayer {
	return &MarkerLayer{
		client:  client,
		topics:  topics,
		markers: make(map[string]MarkerSpec),
	}
}

func (m *MarkerLayer) Attach(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[id]; ok {
		return nil
	}
	spec := newMarkerSpec(id)
	payload, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("encoding marker: %w", err)
	}
	if err := PublishWait(m.client(), m.topics.MarkerTopic(id), true, payload); err != nil {
		return err
	}
	m.markers[id] = spec
	return nil
}

func (m *MarkerLayer) Detach(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.markers[id]; !ok {
		return nil
	}
	if err := PublishWait(m.client(), m.topics.MarkerTopic(id), true, []byte{}); err != nil {
		return err
	}
	delete(m.markers, id)
	return nil
}

func (m *MarkerLayer) Has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.markers[id]
	return ok
}

// Attached returns the ids of lights holding a marker, sorted.
func (m *MarkerLayer) Attached() []string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.markers))
	for id := range m.markers {
		ids = append(ids, id)
	}
	m.mu.Unlock()
	sort.Strings(ids)
	return ids
}

func (m *MarkerLayer) Get(id string) (MarkerSpec, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	spec, ok := m.markers[id]
	return spec, ok
}

/* ***************************************
Marker icon
*/

var (
	markerIconOnce sync.Once
	markerIconPNG  []byte
	markerIconErr  error
)

// MarkerIcon returns the rendered marker icon as PNG.
func MarkerIcon() ([]byte, error) {
	markerIconOnce.Do(func() {
		var buf bytes.Buffer
		markerIconErr = png.Encode(&buf, renderMarkerIcon())
		markerIconPNG = buf.Bytes()
	})
	return markerIconPNG, markerIconErr
}

// renderMarkerIcon draws a torch on a dark disc with a black rim.
func renderMarkerIcon() *image.RGBA {
	size := markerIconSize + 2*markerPadding
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	c := float32(size) / 2

	fillPath(img, markerOutline, circlePath(c, c, c))
	fillPath(img, markerBackground, circlePath(c, c, c-markerOutlineWidth))

	// handle
	fillPath(img, torchHandle, func(z *vector.Rasterizer) {
		z.MoveTo(c-2, c-2)
		z.LineTo(c+2, c-2)
		z.LineTo(c+1, c+11)
		z.LineTo(c-1, c+11)
		z.ClosePath()
	})
	// flame
	fillPath(img, torchFlame, func(z *vector.Rasterizer) {
		z.MoveTo(c, c-11)
		z.QuadTo(c+5, c-5, c, c-1)
		z.QuadTo(c-5, c-5, c, c-11)
		z.ClosePath()
	})
	fillPath(img, torchFlameCore, func(z *vector.Rasterizer) {
		z.MoveTo(c, c-7)
		z.QuadTo(c+2.5, c-4, c, c-2)
		z.QuadTo(c-2.5, c-4, c, c-7)
		z.ClosePath()
	})
	return img
}

func fillPath(dst *image.RGBA, col color.Color, path func(z *vector.Rasterizer)) {
	b := dst.Bounds()
	z := vector.NewRasterizer(b.Dx(), b.Dy())
	path(z)
	z.Draw(dst, b, image.NewUniform(col), image.Point{})
}

func circlePath(cx, cy, r float32) func(z *vector.Rasterizer) {
	return func(z *vector.Rasterizer) {
		z.MoveTo(cx+r, cy)
		for i := 1; i < circleSegments; i++ {
			a := 2 * math.Pi * float64(i) / circleSegments
			z.LineTo(cx+r*float32(math.Cos(a)), cy+r*float32(math.Sin(a)))
		}
		z.ClosePath()
	}
}

func MarkerIconHandler(w http.ResponseWriter, r *http.Request) {
	data, err := MarkerIcon()
	if err != nil {
		Logger.Error().Err(err).Msg("Error rendering marker icon")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=86400")
	if _, err := w.Write(data); err != nil {
		Logger.Error().Msgf("Error writing marker icon: %v", err)
	}
}
