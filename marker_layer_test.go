package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"image/png"
	"net/http"
	"net/http/httptest"
	"testing"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	. "github.com/elijahnyp/torch_sync/util"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMarkerLayer() (*MarkerLayer, *mockClient) {
	client := newMockClient()
	return NewMarkerLayer(func() MQTT.Client { return client }, &Model{Prefix: "test"}), client
}

func TestMarkerLayer_AttachPublishesSpec(t *testing.T) {
	m, client := newTestMarkerLayer()

	require.NoError(t, m.Attach("a"))
	require.NoError(t, m.Attach("a"))

	calls := client.publishes("test/light/a/marker")
	require.Len(t, calls, 1, "attach is idempotent")
	assert.True(t, calls[0].Retained)

	var spec MarkerSpec
	require.NoError(t, json.Unmarshal(calls[0].Payload, &spec))
	assert.Equal(t, "torchsync-icon", spec.Name)
	assert.Equal(t, "a", spec.EntityID)
	assert.Equal(t, "/marker.png", spec.Icon)
	assert.Equal(t, 30, spec.OffsetX)
	assert.Equal(t, -30, spec.OffsetY)
	assert.Equal(t, 24, spec.IconSize)
	assert.Equal(t, 32, spec.Size)
	assert.Equal(t, 100, spec.ZIndex)
	assert.Equal(t, "#272727", spec.Background)
	assert.Equal(t, "#000000", spec.Outline)
	assert.Equal(t, 2, spec.OutlineWidth)
	_, err := uuid.Parse(spec.Handle)
	assert.NoError(t, err)

	stored, ok := m.Get("a")
	require.True(t, ok)
	assert.Equal(t, spec, stored)
}

func TestMarkerLayer_HandlesAreUnique(t *testing.T) {
	m, _ := newTestMarkerLayer()
	require.NoError(t, m.Attach("a"))
	require.NoError(t, m.Attach("b"))

	a, _ := m.Get("a")
	b, _ := m.Get("b")
	assert.NotEqual(t, a.Handle, b.Handle)
	assert.Equal(t, []string{"a", "b"}, m.Attached())
}

func TestMarkerLayer_Detach(t *testing.T) {
	m, client := newTestMarkerLayer()

	require.NoError(t, m.Detach("a"))
	assert.Zero(t, client.count(), "detaching an absent marker publishes nothing")

	require.NoError(t, m.Attach("a"))
	require.NoError(t, m.Detach("a"))

	calls := client.publishes("test/light/a/marker")
	require.Len(t, calls, 2)
	assert.Empty(t, calls[1].Payload)
	assert.True(t, calls[1].Retained)
	assert.False(t, m.Has("a"))
	assert.Empty(t, m.Attached())
}

func TestMarkerLayer_FailedPublish(t *testing.T) {
	m, client := newTestMarkerLayer()
	boom := errors.New("boom")
	client.failOn("test/light/a/marker", boom)

	assert.ErrorIs(t, m.Attach("a"), boom)
	assert.False(t, m.Has("a"))

	client.failOn("test/light/a/marker", nil)
	require.NoError(t, m.Attach("a"))
	client.failOn("test/light/a/marker", boom)
	assert.ErrorIs(t, m.Detach("a"), boom)
	assert.True(t, m.Has("a"), "marker is kept while the host may still show it")
}

func TestMarkerIcon(t *testing.T) {
	data, err := MarkerIcon()
	require.NoError(t, err)

	img, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 32, img.Bounds().Dx())
	assert.Equal(t, 32, img.Bounds().Dy())

	_, _, _, a := img.At(0, 0).RGBA()
	assert.Zero(t, a, "corners are transparent")

	r, g, b, a := img.At(1, 16).RGBA()
	assert.Less(t, r>>8+g>>8+b>>8, uint32(3), "rim is black")
	assert.Greater(t, a>>8, uint32(0xfd))

	r, g, b, _ = img.At(4, 16).RGBA()
	for _, c := range []uint32{r, g, b} {
		assert.InDelta(t, 0x27, c>>8, 1, "disc is #272727")
	}

	r, _, b, _ = img.At(16, 10).RGBA()
	assert.Greater(t, r>>8, uint32(200), "flame is warm")
	assert.Less(t, b>>8, uint32(100))
}

func TestMarkerIconHandler(t *testing.T) {
	w := httptest.NewRecorder()
	MarkerIconHandler(w, httptest.NewRequest(http.MethodGet, "/marker.png", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	data, _ := MarkerIcon()
	assert.Equal(t, data, w.Body.Bytes())
}
