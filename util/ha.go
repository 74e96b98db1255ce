package util

import (
	"encoding/json"
	"fmt"

	MQTT "github.com/eclipse/paho.mqtt.golang"
)

type HAAvailability struct {
	Topic               string `json:"topic"`
	PayloadAvailable    string `json:"payload_available"`
	PayloadNotAvailable string `json:"payload_not_available"`
}

type HADeviceSpec struct {
	Name        string   `json:"name"`
	Identifiers []string `json:"ids"`
}

// HAAdvertisement is a Home Assistant MQTT discovery config for the global
// illumination binary sensor.
type HAAdvertisement struct { //nolint:govet // struct layout follows discovery field order
	Availability []HAAvailability `json:"availability"`
	Device       HADeviceSpec     `json:"device"`
	UniqueID     string           `json:"uniq_id"`
	Name         string           `json:"name"`
	StateTopic   string           `json:"state_topic"`
	PayloadOn    string           `json:"payload_on"`
	PayloadOff   string           `json:"payload_off"`
	DeviceClass  string           `json:"device_class"`
	Icon         string           `json:"icon"`
	Qos          int              `json:"qos"`
}

func (ha HAAdvertisement) ToJson() string {
	data, err := json.Marshal(ha)
	if err != nil {
		Logger.Error().Msgf("Error marshalling HAAdvertisement: %v", err)
		return ""
	}
	return string(data)
}

func ConstructHAAdvertisement(name string, model Model) HAAdvertisement {
	return HAAdvertisement{
		Name:       name + " global illumination",
		StateTopic: model.ActivityTopic(),
		PayloadOn:  "true",
		PayloadOff: "false",
		Availability: []HAAvailability{
			{
				Topic:               model.OnlineTopic(),
				PayloadAvailable:    "online",
				PayloadNotAvailable: "offline",
			},
		},
		Qos:         1,
		UniqueID:    "torchsync-" + name + "-illumination",
		DeviceClass: "light",
		Icon:        "mdi:torch",
		Device: HADeviceSpec{
			Name:        name,
			Identifiers: []string{"torchsync-" + name},
		},
	}
}

func HADiscoveryTopic(name string) string {
	return "homeassistant/binary_sensor/" + name + "/illumination/config"
}

func AdvertiseHA(name string, model Model, client MQTT.Client) error {
	ha := ConstructHAAdvertisement(name, model)
	if token := client.Publish(HADiscoveryTopic(name), 0, true, ha.ToJson()); token.Wait() && token.Error() != nil {
		return fmt.Errorf("advertising %s: %w", name, token.Error())
	}
	return nil
}
