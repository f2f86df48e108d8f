// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/mvc-labs/mvcd/config"
	"github.com/mvc-labs/mvcd/netsignals"
	"github.com/mvc-labs/mvcd/peer"
	"github.com/mvc-labs/mvcd/signal"
	"github.com/mvc-labs/mvcd/util/panics"
	"github.com/mvc-labs/mvcd/util/profiling"
	"github.com/mvc-labs/mvcd/version"
	"github.com/mvc-labs/mvcd/wire"
)

// connectionRetryInterval is the amount of time to wait before retrying a
// persistent outbound connection that failed or was dropped.
const connectionRetryInterval = time.Second * 5

var cfg *config.Config

// winServiceMain is only invoked on Windows. It detects when mvcd is running
// as a service and reacts accordingly.
var winServiceMain func() (bool, error)

// mvcdMain is the real main function for mvcd. It is necessary to work around
// the fact that deferred functions do not run when os.Exit() is called. The
// optional startedChan parameter is mainly used by the service code to be
// notified once the node is up so that can be properly logged.
func mvcdMain(startedChan chan<- struct{}) error {
	interrupt := signal.InterruptListener()

	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	err := config.LoadAndSetActiveConfig()
	if err != nil {
		return err
	}
	cfg = config.ActiveConfig()
	defer panics.HandlePanic(log, nil)

	defer log.Info("Shutdown complete")

	// Show version at startup.
	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		profiling.Start(cfg.Profile, log)
	}

	// Return now if an interrupt signal was triggered.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	node, err := newMvcd()
	if err != nil {
		log.Errorf("Unable to start mvcd on %s: %+v", cfg.Listeners, err)
		return err
	}
	defer func() {
		log.Infof("Gracefully shutting down mvcd...")
		err := node.stop()
		if err != nil {
			log.Errorf("Error stopping mvcd: %+v", err)
		}
		node.WaitForShutdown()
	}()

	node.start()
	if startedChan != nil {
		startedChan <- struct{}{}
	}

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems such as the
	// service control manager.
	<-interrupt
	return nil
}

// mvcd is a wrapper for all the mvcd node services.
type mvcd struct {
	listeners []net.Listener
	signals   *netsignals.Registry

	peersMtx     sync.Mutex
	peers        map[int32]*peer.Peer
	inboundCount int

	wg   sync.WaitGroup
	quit chan struct{}

	started, shutdown int32
}

// newMvcd returns a new mvcd instance configured to listen on the addresses
// of the active config for the mvc network type specified by its net params.
// Use start to begin accepting connections from peers.
func newMvcd() (*mvcd, error) {
	listeners, err := setupListeners()
	if err != nil {
		return nil, err
	}

	return &mvcd{
		listeners: listeners,
		signals:   netsignals.DefaultRegistry(),
		peers:     make(map[int32]*peer.Peer),
		quit:      make(chan struct{}),
	}, nil
}

// setupListeners opens a TCP listener for every address the config names.
// Listening may be disabled entirely, for example when only --connect peers
// are wanted.
func setupListeners() ([]net.Listener, error) {
	if cfg.DisableListen {
		return nil, nil
	}

	listeners := make([]net.Listener, 0, len(cfg.Listeners))
	for _, addr := range cfg.Listeners {
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			for _, earlier := range listeners {
				earlier.Close()
			}
			return nil, errors.Wrapf(err, "error listening on %s", addr)
		}
		listeners = append(listeners, listener)
	}
	return listeners, nil
}

// start launches all the mvcd services.
func (s *mvcd) start() {
	// Already started?
	if atomic.AddInt32(&s.started, 1) != 1 {
		return
	}

	log.Trace("Starting mvcd")

	s.signals.Register(violationLogger{})

	for _, listener := range s.listeners {
		listener := listener
		s.wg.Add(1)
		spawn(func() {
			s.listenHandler(listener)
		})
		log.Infof("Listening on %s", listener.Addr())
	}

	// --connect takes precedence over --addpeer; the config layer already
	// rejects mixing the two.
	connectAddrs := cfg.ConnectPeers
	if len(connectAddrs) == 0 {
		connectAddrs = cfg.AddPeers
	}
	for _, addr := range connectAddrs {
		addr := addr
		s.wg.Add(1)
		spawn(func() {
			s.outboundPeerHandler(addr)
		})
	}
}

// stop gracefully shuts down all the mvcd services.
func (s *mvcd) stop() error {
	// Make sure this only happens once.
	if atomic.AddInt32(&s.shutdown, 1) != 1 {
		log.Infof("Mvcd is already in the process of shutting down")
		return nil
	}

	log.Warnf("Mvcd shutting down")

	s.signals.Unregister(violationLogger{})

	close(s.quit)

	for _, listener := range s.listeners {
		err := listener.Close()
		if err != nil {
			log.Errorf("Error closing listener %s: %+v", listener.Addr(), err)
		}
	}

	s.peersMtx.Lock()
	for _, p := range s.peers {
		p.Disconnect()
	}
	s.peersMtx.Unlock()

	return nil
}

// WaitForShutdown blocks until the main listener and peer handlers are stopped.
func (s *mvcd) WaitForShutdown() {
	s.wg.Wait()
}

// listenHandler accepts incoming connections on a given listener. It must be
// run in its own goroutine and stops when the listener is closed by stop.
func (s *mvcd) listenHandler(listener net.Listener) {
	defer s.wg.Done()

	for atomic.LoadInt32(&s.shutdown) == 0 {
		conn, err := listener.Accept()
		if err != nil {
			// Only log the error if we are not forcibly shutting down.
			if atomic.LoadInt32(&s.shutdown) == 0 {
				log.Errorf("Can't accept connection: %s", err)
			}
			continue
		}

		if !s.reserveInboundSlot() {
			log.Infof("Max inbound peers reached [%d] - disconnecting %s",
				cfg.MaxInboundPeers, conn.RemoteAddr())
			conn.Close()
			continue
		}

		s.wg.Add(1)
		spawn(func() {
			defer s.wg.Done()
			defer s.releaseInboundSlot()
			s.inboundPeerConnected(conn)
		})
	}

	log.Tracef("Listener handler done for %s", listener.Addr())
}

// inboundPeerConnected negotiates the protocol on a freshly accepted
// connection and then tracks the peer until it disconnects.
func (s *mvcd) inboundPeerConnected(conn net.Conn) {
	p := peer.NewInboundPeer(s.newPeerConfig())
	err := p.AssociateConnection(conn)
	if err != nil {
		log.Debugf("Handshake with inbound peer %s failed: %s",
			conn.RemoteAddr(), err)
		return
	}

	s.addPeer(p)
	defer s.removePeer(p)

	log.Infof("Connected to %s (%s)", p, p.UserAgent())
	p.WaitForDisconnect()
}

// outboundPeerHandler maintains a persistent connection to the given address.
// It redials with a fixed backoff whenever the connection fails or the peer
// disconnects, until the node shuts down.
func (s *mvcd) outboundPeerHandler(addr string) {
	defer s.wg.Done()

	for {
		s.connectToPeer(addr)

		select {
		case <-s.quit:
			return
		case <-time.After(connectionRetryInterval):
		}
	}
}

// connectToPeer dials addr, runs the protocol handshake, and blocks until the
// resulting peer disconnects. Dialing honors the configured proxy since the
// config layer installs a proxied dial function when one is set.
func (s *mvcd) connectToPeer(addr string) {
	p, err := peer.NewOutboundPeer(s.newPeerConfig(), addr)
	if err != nil {
		log.Errorf("Invalid peer address %s: %s", addr, err)
		return
	}

	conn, err := cfg.Dial("tcp", addr, config.DefaultConnectTimeout)
	if err != nil {
		log.Debugf("Can't dial %s: %s", addr, err)
		return
	}

	err = p.AssociateConnection(conn)
	if err != nil {
		log.Debugf("Handshake with outbound peer %s failed: %s", addr, err)
		return
	}

	s.addPeer(p)
	defer s.removePeer(p)

	log.Infof("Connected to %s (%s)", p, p.UserAgent())
	p.WaitForDisconnect()
}

// reserveInboundSlot claims one of the MaxInboundPeers slots. It returns
// false when all slots are taken.
func (s *mvcd) reserveInboundSlot() bool {
	s.peersMtx.Lock()
	defer s.peersMtx.Unlock()

	if s.inboundCount >= cfg.MaxInboundPeers {
		return false
	}
	s.inboundCount++
	return true
}

// releaseInboundSlot returns a slot claimed by reserveInboundSlot.
func (s *mvcd) releaseInboundSlot() {
	s.peersMtx.Lock()
	defer s.peersMtx.Unlock()
	s.inboundCount--
}

func (s *mvcd) addPeer(p *peer.Peer) {
	s.peersMtx.Lock()
	defer s.peersMtx.Unlock()
	s.peers[p.ID()] = p

	// A peer associated while stop was draining the map would otherwise
	// linger forever.
	if atomic.LoadInt32(&s.shutdown) != 0 {
		p.Disconnect()
	}
}

func (s *mvcd) removePeer(p *peer.Peer) {
	s.peersMtx.Lock()
	defer s.peersMtx.Unlock()
	delete(s.peers, p.ID())
}

// newPeerConfig returns the configuration for a new peer, wired to the active
// config.
func (s *mvcd) newPeerConfig() *peer.Config {
	return &peer.Config{
		HostToNetAddress:     mvcdHostToNetAddress,
		Proxy:                cfg.Proxy,
		UserAgentName:        "mvcd",
		UserAgentVersion:     version.Version(),
		UserAgentComments:    cfg.UserAgentComments,
		ChainParams:          cfg.NetParams(),
		Services:             wire.SFNodeNetwork,
		MaxRecvPayloadLength: cfg.MaxRecvPayloadLength,
		MaxSendPayloadLength: cfg.MaxProtocolSendPayloadLength(),
		SendPayloadFactor:    cfg.MaxSendPayloadFactor,
		RecvInvQueueFactor:   cfg.RecvInvQueueFactor,
		ExcessiveBlockSize:   cfg.ExcessiveBlockSize,
		Listeners: peer.MessageListeners{
			OnVersion: func(p *peer.Peer, msg *wire.MsgVersion) {
				log.Debugf("Peer %s advertises %s, protocol version %d, "+
					"last block %d", p, msg.UserAgent, msg.ProtocolVersion,
					msg.LastBlock)
			},
			OnProtoconf: func(p *peer.Peer, msg *wire.MsgProtoconf) {
				log.Infof("Peer %s negotiated protoconf: send up to %d "+
					"bytes per message, %d inventory entries per batch, "+
					"receive inventory queue %d entries", p,
					p.MaxSendPayloadLength(), p.MaxInvElements(),
					p.MaxRecvInvQueueSize())
			},
		},
	}
}

// violationLogger reports peer protocol violations to the node log. It is
// registered on the process-wide netsignals registry while the node runs.
type violationLogger struct{}

func (violationLogger) OnMessageAssembled(peerID int32, msg *wire.NetMessage) {}

func (violationLogger) OnProtoconfReceived(peerID int32, protoconf *wire.MsgProtoconf) {}

func (violationLogger) OnProtocolViolation(peerID int32, err error) {
	log.Warnf("Peer %d violated the protocol: %s", peerID, err)
}

// mvcdHostToNetAddress resolves a hostname to a wire network address using
// the lookup function of the active config, which may be proxy aware.
func mvcdHostToNetAddress(host string, port uint16, services wire.ServiceFlag) (*wire.NetAddress, error) {
	ip := net.ParseIP(host)
	if ip == nil {
		ips, err := cfg.Lookup(host)
		if err != nil {
			return nil, err
		}
		if len(ips) == 0 {
			return nil, errors.Errorf("no addresses found for %s", host)
		}
		ip = ips[0]
	}
	return wire.NewNetAddressIPPort(ip, port, services), nil
}
