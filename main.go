package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/elijahnyp/torch_sync/engine"
	. "github.com/elijahnyp/torch_sync/util"
	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var model Model

func mqttClient() MQTT.Client {
	return Client
}

// publishActivity mirrors the cached aggregate onto the retained activity topic.
func publishActivity(ev engine.Event) {
	if ev.Kind != engine.EventActivity {
		return
	}
	payload := "false"
	if ev.Activity.Bool() {
		payload = "true"
	}
	if err := PublishWait(mqttClient(), model.ActivityTopic(), true, payload); err != nil {
		Logger.Warn().Err(err).Msg("Error publishing activity")
	}
}

func advertiseHA(client MQTT.Client) {
	if !Config.GetBool("ha.enabled") {
		return
	}
	if err := AdvertiseHA(Config.GetString("ha.name"), model, client); err != nil {
		Logger.Error().Msgf("Error advertising to Home Assistant: %v", err)
	}
}

func main() {
	LogInit("trace")
	SetupConfig()
	RegisterNewConfigListener(func() { LogInit(Config.GetString("log_level")) })
	RegisterNewConfigListener(func() {
		if err := model.BuildModel(); err != nil {
			Logger.Error().Msgf("Error building model: %v", err)
		}
	})
	RegisterNewConfigListener(subscribeSyncTopics)
	RegisterMQTTConnectHook("haadvertise", advertiseHA)
	RegisterNewConfigListener(func() { MqttInit(model.OnlineTopic()) })
	OnNewConfig()

	clock := clockwork.NewRealClock()
	tracker := NewTrackerSnapshot(ComponentLogger("tracker"))
	scene := NewSceneStore(mqttClient, &model)
	markers := NewMarkerLayer(mqttClient, &model)
	hub := NewHub()
	go hub.Run()

	var dashboard *Dashboard
	engineLog := ComponentLogger("engine")
	eng := engine.New(engine.Options{
		Tracker:             tracker,
		Scene:               scene,
		Markers:             markers,
		Notifier:            NewHostNotifier(mqttClient, &model, ComponentLogger("notifier")),
		Logger:              &engineLog,
		Clock:               clock,
		Workers:             Config.GetInt("sync.write_workers"),
		QueueDepth:          Config.GetInt("sync.write_queue"),
		WriteTimeout:        DurationMillis("sync.write_timeout_ms"),
		UngatedConfigChange: Config.GetBool("sync.ungated_config_change"),
		OnEvent: func(ev engine.Event) {
			publishActivity(ev)
			dashboard.Record(ev)
		},
	})
	dashboard = NewDashboard(eng, scene, tracker, markers, hub)

	router := NewSyncRouter(eng, tracker, scene, clock, ComponentLogger("router"))
	go SyncManagerRoutine(router, sync_channel)

	monitor := NewMonitorServer()
	monitor.AddHandler("/", dashboard.HomeHandler)
	monitor.AddHandler("/ws", dashboard.ServeWebSocket)
	monitor.AddHandler("/api/status", dashboard.APISystemStatus)
	monitor.AddHandler("/api/lights", dashboard.APILights)
	monitor.AddHandler(markerIconPath, MarkerIconHandler)
	monitor.AddRawHandler("/metrics", promhttp.Handler())
	if err := monitor.Start(); err != nil {
		Logger.Error().Msgf("Error starting monitor server: %v", err)
	}
	RegisterNewConfigListener(func() { monitor.Restart() })
	Logger.Info().Msg("ready")
	go OnlinePinger()
	go HAAdvertiser()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigs
	Logger.Info().Msgf("received %v, shutting down", sig)
	eng.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := monitor.Shutdown(ctx); err != nil {
		Logger.Warn().Msgf("Error shutting down monitor server: %v", err)
	}
	if Client != nil && Client.IsConnected() {
		Client.Disconnect(250)
	}
}

// online pinger
func OnlinePinger() {
	for {
		if Client != nil {
			if token := Client.Publish(model.OnlineTopic(), 0, false, "online"); token.Wait() && token.Error() != nil {
				Logger.Error().Msgf("Error publishing online message: %v", token.Error())
			}
		}
		time.Sleep(10 * time.Second)
	}
}

// HAAdvertiser - re-advertises Home Assistant discovery messages every 5 minutes
func HAAdvertiser() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		if Client != nil && Client.IsConnected() {
			Logger.Debug().Msg("Advertising Home Assistant discovery messages")
			advertiseHA(Client)
		}
	}
}
