// Copyright (c) 2014-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package chaincfg

import (
	"github.com/mvc-labs/mvcd/wire"
	"github.com/pkg/errors"
)

// DNSSeed identifies a DNS seed.
type DNSSeed struct {
	// Host defines the hostname of the seed.
	Host string

	// HasFiltering defines whether the seed supports filtering by service
	// flags (wire.ServiceFlag).
	HasFiltering bool
}

// String returns the hostname of the DNS seed in human-readable form.
func (d DNSSeed) String() string {
	return d.Host
}

// Params defines an mvc network by its parameters. These parameters may be
// used by mvc applications to differentiate networks as well as addresses
// and keys for one network from those intended for use on another network.
type Params struct {
	// Name defines a human-readable identifier for the network.
	Name string

	// Net defines the magic bytes used to identify the network.
	Net wire.MessageMagic

	// DefaultPort defines the default peer-to-peer port for the network.
	DefaultPort string

	// RPCPort defines the rpc server port.
	RPCPort string

	// DNSSeeds defines a list of DNS seeds for the network that are used
	// as one method to discover peers.
	DNSSeeds []DNSSeed

	// AcceptUnroutable specifies whether this network accepts unroutable
	// IP addresses, such as 10.0.0.0/8.
	AcceptUnroutable bool
}

// MainNetParams defines the network parameters for the main mvc network.
var MainNetParams = Params{
	Name:        "mainnet",
	Net:         wire.MainNet,
	DefaultPort: "9883",
	RPCPort:     "9882",
	DNSSeeds: []DNSSeed{
		{"seed.mvclabs.io", true},
		{"seed.mvcnode.io", false},
	},

	AcceptUnroutable: false,
}

// TestNetParams defines the network parameters for the test mvc network.
var TestNetParams = Params{
	Name:        "testnet",
	Net:         wire.TestNet,
	DefaultPort: "19883",
	RPCPort:     "19882",
	DNSSeeds: []DNSSeed{
		{"testnet-seed.mvclabs.io", true},
	},

	AcceptUnroutable: false,
}

// RegressionNetParams defines the network parameters for the regression test
// mvc network. Not to be confused with the test network, this network is
// sometimes simply called "regtest". It has no seeds and accepts unroutable
// addresses so isolated local setups work out of the box.
var RegressionNetParams = Params{
	Name:        "regtest",
	Net:         wire.RegTestNet,
	DefaultPort: "19899",
	RPCPort:     "19898",
	DNSSeeds:    []DNSSeed{},

	AcceptUnroutable: true,
}

// STNetParams defines the network parameters for the scaling test mvc
// network. The scaling test network carries its own magic so its large test
// blocks never leak into the main network, but shares the main network's
// default port.
var STNetParams = Params{
	Name:        "stn",
	Net:         wire.STNet,
	DefaultPort: "9883",
	RPCPort:     "9882",
	DNSSeeds: []DNSSeed{
		{"stn-seed.mvclabs.io", false},
	},

	AcceptUnroutable: false,
}

var (
	// ErrDuplicateNet describes an error where the parameters for an mvc
	// network could not be set due to the network already being a standard
	// network or previously-registered into this package.
	ErrDuplicateNet = errors.New("duplicate mvc network")
)

var (
	registeredNets = make(map[wire.MessageMagic]struct{})
)

// Register registers the network parameters for an mvc network. This may
// error with ErrDuplicateNet if the network is already registered (either
// due to a previous Register call, or the network being one of the default
// networks).
//
// Network parameters should be registered into this package by a main package
// as early as possible. Then, library packages may lookup networks or network
// parameters based on inputs and work regardless of the network being standard
// or not.
func Register(params *Params) error {
	if _, ok := registeredNets[params.Net]; ok {
		return ErrDuplicateNet
	}
	registeredNets[params.Net] = struct{}{}

	return nil
}

// mustRegister performs the same function as Register except it panics if
// there is an error. This should only be called from package init functions.
func mustRegister(params *Params) {
	if err := Register(params); err != nil {
		panic("failed to register network: " + err.Error())
	}
}

// IsNetRegistered returns whether the magic of the passed network has been
// registered into this package, either as a default network or through
// Register.
func IsNetRegistered(net wire.MessageMagic) bool {
	_, ok := registeredNets[net]
	return ok
}

func init() {
	// Register all default networks when the package is initialized.
	mustRegister(&MainNetParams)
	mustRegister(&TestNetParams)
	mustRegister(&RegressionNetParams)
	mustRegister(&STNetParams)
}
