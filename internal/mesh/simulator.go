// Package mesh simulates the node's presence on the wider trading
// mesh: a periodic heartbeat with drifting node counts, and a
// discovery producer that surfaces listings from "other" nodes.
package mesh

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/amasampo/mesh/internal/assist"
	"github.com/amasampo/mesh/internal/bus"
	"github.com/amasampo/mesh/internal/store"
)

var (
	cities = []string{"Lusaka", "Kitwe", "Ndola", "Livingstone", "Chipata", "Kabwe", "Solwezi", "Mansah"}

	vendorPrefixes = []string{"Mama", "Bana", "Ba", "Smart", "Quick", "Trust", "Zambian"}
	vendorNames    = []string{"Sarah", "Chileshe", "Mwape", "Lindi", "Bwalya", "Mutale", "Junior"}

	listingTypes = []string{
		store.ListingBuySell, store.ListingServices, store.ListingJobs,
		store.ListingProperty, store.ListingPromotion,
	}
)

// CategoryMeshDiscovery marks listings that arrived via discovery
// rather than a local save.
const CategoryMeshDiscovery = "Mesh Discovery"

// Heartbeat is the payload published on every presence tick.
type Heartbeat struct {
	Status   State  `json:"status"`
	Nodes    int    `json:"nodes"`
	Strength int    `json:"strength"`
	Region   string `json:"region"`
}

type Options struct {
	NodeName          string
	Region            string
	HeartbeatInterval time.Duration
	DiscoveryMin      time.Duration
	DiscoveryMax      time.Duration
	Seed              int64
}

func DefaultOptions() Options {
	return Options{
		Region:            "Zambia Central",
		HeartbeatInterval: 5 * time.Second,
		DiscoveryMin:      45 * time.Second,
		DiscoveryMax:      90 * time.Second,
		Seed:              time.Now().UnixNano(),
	}
}

// Simulator drives the heartbeat and discovery loops.
type Simulator struct {
	db      *store.DB
	bus     *bus.Bus
	gen     assist.Generator
	machine *Machine
	logger  *zap.Logger
	opts    Options

	mu        sync.Mutex
	rng       *rand.Rand
	nodeCount int

	cancel context.CancelFunc
	done   chan struct{}
}

func NewSimulator(db *store.DB, b *bus.Bus, gen assist.Generator, logger *zap.Logger, opts Options) *Simulator {
	return &Simulator{
		db:        db,
		bus:       b,
		gen:       gen,
		machine:   NewMachine(b),
		logger:    logger.Named("mesh"),
		opts:      opts,
		rng:       rand.New(rand.NewSource(opts.Seed)),
		nodeCount: 142,
	}
}

// Machine exposes the presence state machine.
func (s *Simulator) Machine() *Machine { return s.machine }

// Snapshot reports the current presence without waiting for a tick.
func (s *Simulator) Snapshot() Heartbeat {
	s.mu.Lock()
	nodes := s.nodeCount
	s.mu.Unlock()
	return Heartbeat{Status: s.machine.Current(), Nodes: nodes, Strength: 98, Region: s.opts.Region}
}

// Start launches the heartbeat and discovery loops.
func (s *Simulator) Start() error {
	if err := s.machine.Transition(Connected); err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})

	s.publishHeartbeat(s.Snapshot())

	go func() {
		defer close(s.done)
		heartbeat := time.NewTicker(s.opts.HeartbeatInterval)
		defer heartbeat.Stop()
		discovery := time.NewTimer(s.nextDiscoveryDelay())
		defer discovery.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-heartbeat.C:
				s.tick()
			case <-discovery.C:
				s.Discover(ctx)
				discovery.Reset(s.nextDiscoveryDelay())
			}
		}
	}()
	return nil
}

// Stop halts both loops and marks the node offline.
func (s *Simulator) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	if err := s.machine.Transition(Offline); err != nil {
		s.logger.Warn("offline transition", zap.Error(err))
	}
}

func (s *Simulator) nextDiscoveryDelay() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	span := s.opts.DiscoveryMax - s.opts.DiscoveryMin
	if span <= 0 {
		return s.opts.DiscoveryMin
	}
	return s.opts.DiscoveryMin + time.Duration(s.rng.Int63n(int64(span)))
}

// tick drifts the node count, occasionally drops the link, and
// publishes the heartbeat.
func (s *Simulator) tick() {
	s.mu.Lock()
	s.nodeCount += s.rng.Intn(5) - 2
	if s.nodeCount < 120 {
		s.nodeCount = 120
	}
	nodes := s.nodeCount
	flap := s.rng.Float64() <= 0.03
	strength := 85 + s.rng.Intn(15)
	s.mu.Unlock()

	hb := Heartbeat{Status: Connected, Nodes: nodes, Strength: strength, Region: s.opts.Region}
	if flap {
		hb.Status = Reconnecting
		hb.Strength = 0
	}
	s.reconcile(hb.Status)
	s.publishHeartbeat(hb)
}

// reconcile nudges the presence machine toward what the tick observed.
func (s *Simulator) reconcile(observed State) {
	if s.machine.Current() == observed {
		return
	}
	if err := s.machine.Transition(observed); err != nil {
		s.logger.Debug("presence transition skipped", zap.Error(err))
	}
}

func (s *Simulator) publishHeartbeat(hb Heartbeat) {
	s.bus.Publish(bus.Event{
		Kind:      bus.KindMeshHeartbeat,
		Timestamp: time.Now(),
		Source:    s.opts.NodeName,
		Payload:   hb,
	})
}

// Discover asks the generator for one listing from a random remote
// vendor, saves it, and announces it. Generator failures degrade to
// canned content so the cadence never stalls.
func (s *Simulator) Discover(ctx context.Context) {
	s.mu.Lock()
	city := cities[s.rng.Intn(len(cities))]
	vendor := vendorPrefixes[s.rng.Intn(len(vendorPrefixes))] + " " + vendorNames[s.rng.Intn(len(vendorNames))]
	listingType := listingTypes[s.rng.Intn(len(listingTypes))]
	boosted := s.rng.Float64() > 0.85
	views := int64(s.rng.Intn(50))
	suffix := s.rng.Int63()
	s.mu.Unlock()

	draft, err := s.gen.GenerateListing(ctx, city, vendor, listingType)
	if err != nil {
		s.logger.Warn("listing generation failed, using fallback", zap.Error(err))
		draft = assist.Fallback()
	}

	listing := &store.Listing{
		ID:               fmt.Sprintf("mesh_%x", suffix),
		OwnerID:          fmt.Sprintf("u_%x", suffix),
		OwnerName:        vendor,
		Type:             listingType,
		Category:         CategoryMeshDiscovery,
		Title:            draft.Title,
		ShortDescription: draft.ShortDescription,
		Description:      draft.Description,
		Price:            draft.Price,
		Images:           []string{fmt.Sprintf("https://picsum.photos/600/600?random=%x", suffix)},
		Location:         city + ", Zambia",
		IsBoosted:        boosted,
		Views:            views,
		WhatsApp:         "+260970000000",
		InAppChat:        true,
	}
	if err := s.db.SaveListing(listing); err != nil {
		s.logger.Warn("discovery save failed", zap.Error(err))
		return
	}

	s.bus.Publish(bus.Event{
		Kind:      bus.KindGlobalAlert,
		Timestamp: time.Now(),
		Source:    s.opts.NodeName,
		Payload: bus.Alert{
			Message: fmt.Sprintf("%s in %s just posted: %s", vendor, city, draft.Title),
			Type:    bus.AlertDiscovery,
		},
	})
	s.logger.Info("mesh discovery",
		zap.String("listing", listing.ID),
		zap.String("city", city),
		zap.String("vendor", vendor))
}
