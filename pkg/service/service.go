// Receiptd
// Copyright (c) 2026 The Kioskworks Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Receiptd.
//
// Receiptd is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Receiptd is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Receiptd.  If not, see <http://www.gnu.org/licenses/>.

package service

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/kioskworks/receiptd/pkg/api"
	"github.com/kioskworks/receiptd/pkg/api/models"
	"github.com/kioskworks/receiptd/pkg/config"
	"github.com/kioskworks/receiptd/pkg/helpers/syncutil"
	"github.com/kioskworks/receiptd/pkg/printers"
	"github.com/kioskworks/receiptd/pkg/printers/serialport"
	"github.com/kioskworks/receiptd/pkg/printers/usbraw"
	"github.com/kioskworks/receiptd/pkg/service/broker"
	"github.com/kioskworks/receiptd/pkg/service/discovery"
	"github.com/kioskworks/receiptd/pkg/service/publishers"
	"github.com/kioskworks/receiptd/pkg/service/state"
)

// newTransport picks the link driver the config names.
func newTransport(cfg *config.Instance) (printers.Transport, error) {
	switch driver := cfg.PrinterDriver(); driver {
	case config.DriverUSBRaw:
		return usbraw.NewTransport(cfg), nil
	case config.DriverSerial:
		return serialport.NewTransport(cfg), nil
	default:
		return nil, fmt.Errorf("unknown printer driver: %q", driver)
	}
}

// Start brings the whole service up: the connection engine, the
// notification broker, the API server, mDNS discovery, MQTT publishers
// and the device watcher. The returned stop function blocks until
// everything has shut down.
func Start(cfg *config.Instance) (stop func() error, done <-chan struct{}, err error) {
	log.Info().Msgf("version: %s", config.AppVersion)

	transport, err := newTransport(cfg)
	if err != nil {
		return nil, nil, err
	}
	log.Info().Msgf("using printer driver: %s", transport.ID())

	st, ns := state.NewState()

	notifBroker := broker.NewBroker(st.GetContext(), ns)
	notifBroker.Start()

	manager := NewManager(cfg, st, transport, clockwork.NewRealClock())
	manager.Start()

	log.Info().Msg("starting mDNS discovery service")
	discoveryService := discovery.New(cfg, transport.ID())
	if discoveryErr := discoveryService.Start(); discoveryErr != nil {
		log.Error().Err(discoveryErr).Msg("mDNS discovery failed to start (continuing without discovery)")
	}

	log.Info().Msg("starting API service")
	apiNotifications, _ := notifBroker.Subscribe(100)
	go api.Start(cfg, st, manager, apiNotifications)

	log.Info().Msg("starting publishers")
	publisherNotifications, _ := notifBroker.Subscribe(100)
	activePublishers, cancelPublisherFanOut := startPublishers(st, cfg, publisherNotifications)

	var watcher *DeviceWatcher
	if cfg.WatchDevices() {
		watcher = NewDeviceWatcher(manager.Nudge)
		if watchErr := watcher.Start(); watchErr != nil {
			log.Warn().Err(watchErr).Msg("device watcher failed to start (continuing without it)")
			watcher = nil
		}
	}

	doneCh := make(chan struct{})
	go func() {
		<-st.GetContext().Done()
		log.Info().Msg("service context cancelled, running cleanup")

		if watcher != nil {
			watcher.Stop()
		}
		discoveryService.Stop()
		cancelPublisherFanOut()
		for _, publisher := range activePublishers {
			publisher.Stop()
		}
		manager.Stop()
		notifBroker.Stop()

		log.Info().Msg("service cleanup completed")
		close(doneCh)
	}()

	stop = func() error {
		st.Stop()
		<-doneCh
		return nil
	}
	done = doneCh
	return stop, done, nil
}

// startPublishers starts every configured MQTT publisher and a fan-out
// goroutine feeding them. The fan-out always runs: the subscription
// channel must be drained even with zero publishers configured.
func startPublishers(
	st *state.State,
	cfg *config.Instance,
	notifChan <-chan models.Notification,
) ([]*publishers.MQTTPublisher, context.CancelFunc) {
	activePublishers := make([]*publishers.MQTTPublisher, 0)
	feeds := make([]chan models.Notification, 0)

	// brokers connect concurrently, a slow one must not hold up startup
	var mu syncutil.Mutex
	var group errgroup.Group
	for _, mqttCfg := range cfg.GetMQTTPublishers() {
		if mqttCfg.Enabled != nil && !*mqttCfg.Enabled {
			continue
		}

		group.Go(func() error {
			log.Info().Msgf("starting MQTT publisher: %s (topic: %s)", mqttCfg.Broker, mqttCfg.Topic)

			feed := make(chan models.Notification, 100)
			publisher := publishers.NewMQTTPublisher(mqttCfg.Broker, mqttCfg.Topic, mqttCfg.Filter)
			if err := publisher.Start(feed); err != nil {
				log.Error().Err(err).Msgf("failed to start MQTT publisher for %s", mqttCfg.Broker)
				close(feed)
				return nil
			}

			mu.Lock()
			activePublishers = append(activePublishers, publisher)
			feeds = append(feeds, feed)
			mu.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	if len(activePublishers) > 0 {
		log.Info().Msgf("started %d MQTT publisher(s)", len(activePublishers))
	}

	ctx, cancel := context.WithCancel(st.GetContext())
	go func() {
		defer func() {
			for _, feed := range feeds {
				close(feed)
			}
		}()
		for {
			select {
			case <-ctx.Done():
				log.Debug().Msg("mqtt publisher fan-out: stopping")
				return
			case notif, ok := <-notifChan:
				if !ok {
					log.Debug().Msg("mqtt publisher fan-out: notification channel closed")
					return
				}
				for _, feed := range feeds {
					select {
					case feed <- notif:
					default:
						// a wedged broker connection must not stall the rest
					}
				}
			}
		}
	}()

	return activePublishers, cancel
}
