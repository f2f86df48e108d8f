// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/btcsuite/btcutil"
	"github.com/btcsuite/go-socks/socks"
	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/mvc-labs/mvcd/logger"
	"github.com/mvc-labs/mvcd/util/network"
	"github.com/mvc-labs/mvcd/version"
	"github.com/mvc-labs/mvcd/wire"
)

const (
	defaultConfigFilename  = "mvcd.conf"
	defaultDataDirname     = "data"
	defaultLogLevel        = "info"
	defaultLogDirname      = "logs"
	defaultLogFilename     = "mvcd.log"
	defaultErrLogFilename  = "mvcd_err.log"
	defaultMaxInboundPeers = 125
	// DefaultConnectTimeout is the default connection timeout when dialing
	DefaultConnectTimeout = time.Second * 30

	// defaultExcessiveBlockSize is the default consensus ceiling on the
	// serialized size of a block this node is willing to accept. Blocks
	// travel in extended format frames once they cross 4GB, so the default
	// sits exactly at that boundary.
	defaultExcessiveBlockSize uint64 = 4 * 1024 * 1024 * 1024

	sampleConfigFilename = "sample-mvcd.conf"
)

var (
	// DefaultHomeDir is the default home directory for mvcd.
	DefaultHomeDir = btcutil.AppDataDir("mvcd", false)

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

var activeConfig *Config

// RunServiceCommand is only set to a real function on Windows. It is used
// to parse and execute service commands specified via the -s flag.
var RunServiceCommand func(string) error

// Flags defines the configuration options for mvcd.
//
// See loadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion          bool     `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile           string   `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir              string   `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir               string   `long:"logdir" description:"Directory to log output."`
	AddPeers             []string `short:"a" long:"addpeer" description:"Add a peer to connect with at startup"`
	ConnectPeers         []string `long:"connect" description:"Connect only to the specified peers at startup"`
	DisableListen        bool     `long:"nolisten" description:"Disable listening for incoming connections -- NOTE: Listening is automatically disabled if the --connect or --proxy options are used without also specifying listen interfaces via --listen"`
	Listeners            []string `long:"listen" description:"Add an interface/port to listen for connections (default all interfaces port: 9883, testnet: 19883)"`
	MaxInboundPeers      int      `long:"maxinpeers" description:"Max number of inbound peers"`
	Proxy                string   `long:"proxy" description:"Connect via SOCKS5 proxy (eg. 127.0.0.1:9050)"`
	ProxyUser            string   `long:"proxyuser" description:"Username for proxy server"`
	ProxyPass            string   `long:"proxypass" default-mask:"-" description:"Password for proxy server"`
	DebugLevel           string   `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	Profile              string   `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	UserAgentComments    []string `long:"uacomment" description:"Comment to add to the user agent -- See BIP 14 for more information."`
	MaxRecvPayloadLength uint32   `long:"maxprotocolrecvpayloadlength" description:"Maximum protocol payload length in bytes this node advertises it is willing to receive in a single message"`
	MaxSendPayloadFactor uint64   `long:"maxprotocolsendpayloadfactor" description:"Factor by which a peer's advertised receive limit is multiplied to obtain the maximum payload length this node is willing to send to it"`
	RecvInvQueueFactor   uint32   `long:"recvinvqueuefactor" description:"Number of maximum-size inventory messages worth of elements the receive inventory queue can hold"`
	ExcessiveBlockSize   uint64   `long:"excessiveblocksize" description:"The maximum size block (in bytes) this node will accept. Cannot be less than 1000001 bytes"`
	NetworkFlags
}

// Config defines the configuration options for mvcd.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	*Flags
	Lookup func(string) ([]net.IP, error)
	Dial   func(string, string, time.Duration) (net.Conn, error)
}

// MaxProtocolSendPayloadLength returns the largest payload length this node
// is ever willing to send, derived from its own receive limit scaled by the
// send payload factor.
func (cfg *Config) MaxProtocolSendPayloadLength() uint64 {
	return cfg.MaxSendPayloadFactor * uint64(cfg.MaxRecvPayloadLength)
}

// NetMagic returns the message magic of the active network.
func (cfg *Config) NetMagic() wire.MessageMagic {
	return cfg.NetParams().Net
}

// serviceOptions defines the configuration options for the daemon as a service on
// Windows.
type serviceOptions struct {
	ServiceCommand string `short:"s" long:"service" description:"Service command {install, remove, start, stop}"`
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfgFlags *Flags, so *serviceOptions, options flags.Options) *flags.Parser {
	parser := flags.NewParser(cfgFlags, options)
	if runtime.GOOS == "windows" {
		parser.AddGroup("Service Options", "Service Options", so)
	}
	return parser
}

// LoadAndSetActiveConfig loads the config that can afterward be accessible through ActiveConfig()
func LoadAndSetActiveConfig() error {
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	activeConfig = tcfg
	return nil
}

// ActiveConfig is a getter to the main config
func ActiveConfig() *Config {
	return activeConfig
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
//
// The above results in mvcd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func loadConfig() (*Config, []string, error) {
	// Default config.
	cfgFlags := Flags{
		ConfigFile:           defaultConfigFile,
		DebugLevel:           defaultLogLevel,
		DataDir:              defaultDataDir,
		LogDir:               defaultLogDir,
		MaxInboundPeers:      defaultMaxInboundPeers,
		MaxRecvPayloadLength: wire.DefaultMaxProtocolRecvPayloadLength,
		MaxSendPayloadFactor: wire.MaxProtocolSendPayloadFactor,
		RecvInvQueueFactor:   wire.DefaultRecvInvQueueFactor,
		ExcessiveBlockSize:   defaultExcessiveBlockSize,
	}

	// Service options which are only added on Windows.
	serviceOpts := serviceOptions{}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfgFlags
	preParser := newConfigParser(&preCfg, &serviceOpts, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Perform service command and exit if specified. Invalid service
	// commands show an appropriate error. Only runs on Windows since
	// the RunServiceCommand function will be nil when not on Windows.
	if serviceOpts.ServiceCommand != "" && RunServiceCommand != nil {
		err := RunServiceCommand(serviceOpts.ServiceCommand)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfgFlags, &serviceOpts, flags.Default)
	activeConfig = &Config{
		Flags: &cfgFlags,
	}
	if !preCfg.RegressionTest || preCfg.ConfigFile != defaultConfigFile {
		if _, err := os.Stat(preCfg.ConfigFile); os.IsNotExist(err) {
			err := createDefaultConfigFile(preCfg.ConfigFile)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error creating a "+
					"default config file: %s\n", err)
			}
		}

		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config "+
					"file: %s\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	// Don't add peers from the config file when in regression test mode.
	if preCfg.RegressionTest && len(activeConfig.AddPeers) > 0 {
		activeConfig.AddPeers = nil
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(DefaultHomeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = errors.Errorf(str, e.Path, link)
			}
		}

		str := "%s: Failed to create home directory: %s"
		err := errors.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	err = activeConfig.ResolveNetwork(parser)
	if err != nil {
		return nil, nil, err
	}

	// Append the network type to the data directory so it is "namespaced"
	// per network. In addition to the block database, there are other
	// pieces of data that are saved to disk such as address manager state.
	// All data is specific to a network, so namespacing the data directory
	// means each individual piece of serialized data does not have to
	// worry about changing names per network and such.
	activeConfig.DataDir = cleanAndExpandPath(activeConfig.DataDir)
	activeConfig.DataDir = filepath.Join(activeConfig.DataDir, activeConfig.NetParams().Name)

	// Append the network type to the log directory so it is "namespaced"
	// per network in the same fashion as the data directory.
	activeConfig.LogDir = cleanAndExpandPath(activeConfig.LogDir)
	activeConfig.LogDir = filepath.Join(activeConfig.LogDir, activeConfig.NetParams().Name)

	// Special show command to list supported subsystems and exit.
	if activeConfig.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	logger.InitLog(filepath.Join(activeConfig.LogDir, defaultLogFilename), filepath.Join(activeConfig.LogDir, defaultErrLogFilename))

	// Parse, validate, and set debug log level(s).
	if err := logger.ParseAndSetLogLevels(activeConfig.DebugLevel); err != nil {
		err := errors.Errorf("%s: %s", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// The advertised receive limit is clamped rather than rejected so that
	// configurations written for older or newer releases keep working. A
	// value below the legacy limit would make the node refuse messages
	// every pre-protoconf peer is entitled to send.
	if activeConfig.MaxRecvPayloadLength < wire.LegacyMaxProtocolPayloadLength {
		log.Warnf("The maxprotocolrecvpayloadlength option may not be less "+
			"than %d -- clamping [%d]", wire.LegacyMaxProtocolPayloadLength,
			activeConfig.MaxRecvPayloadLength)
		activeConfig.MaxRecvPayloadLength = wire.LegacyMaxProtocolPayloadLength
	}
	if activeConfig.MaxRecvPayloadLength > wire.MaxProtocolRecvPayloadLength {
		log.Warnf("The maxprotocolrecvpayloadlength option may not be greater "+
			"than %d -- clamping [%d]", wire.MaxProtocolRecvPayloadLength,
			activeConfig.MaxRecvPayloadLength)
		activeConfig.MaxRecvPayloadLength = wire.MaxProtocolRecvPayloadLength
	}

	// A zero send factor would forbid sending anything at all.
	if activeConfig.MaxSendPayloadFactor == 0 {
		str := "%s: The maxprotocolsendpayloadfactor option must be greater " +
			"than 0 -- parsed [%d]"
		err := errors.Errorf(str, funcName, activeConfig.MaxSendPayloadFactor)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Limit the receive inventory queue factor to a sane range.
	if activeConfig.RecvInvQueueFactor < wire.MinRecvInvQueueFactor ||
		activeConfig.RecvInvQueueFactor > wire.MaxRecvInvQueueFactor {

		str := "%s: The recvinvqueuefactor option must be in between %d " +
			"and %d -- parsed [%d]"
		err := errors.Errorf(str, funcName, wire.MinRecvInvQueueFactor,
			wire.MaxRecvInvQueueFactor, activeConfig.RecvInvQueueFactor)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// The excessive block size must leave room for at least one legacy
	// sized block, otherwise the node could never accept a block at all.
	if activeConfig.ExcessiveBlockSize <= uint64(wire.LegacyMaxProtocolPayloadLength) {
		str := "%s: The excessiveblocksize option must be greater than %d " +
			"-- parsed [%d]"
		err := errors.Errorf(str, funcName, wire.LegacyMaxProtocolPayloadLength,
			activeConfig.ExcessiveBlockSize)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Validate profile port number
	if activeConfig.Profile != "" {
		profilePort, err := strconv.Atoi(activeConfig.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			str := "%s: The profile port must be between 1024 and 65535"
			err := errors.Errorf(str, funcName)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	// Look for illegal characters in the user agent comments.
	for _, uaComment := range activeConfig.UserAgentComments {
		if strings.ContainsAny(uaComment, "/:()") {
			err := errors.Errorf("%s: The following characters must not "+
				"appear in user agent comments: '/', ':', '(', ')'",
				funcName)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	// --addPeer and --connect do not mix.
	if len(activeConfig.AddPeers) > 0 && len(activeConfig.ConnectPeers) > 0 {
		str := "%s: the --addpeer and --connect options can not be " +
			"mixed"
		err := errors.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// --proxy or --connect without --listen disables listening.
	if (activeConfig.Proxy != "" || len(activeConfig.ConnectPeers) > 0) &&
		len(activeConfig.Listeners) == 0 {
		activeConfig.DisableListen = true
	}

	// Add the default listener if none were specified. The default
	// listener is all addresses on the listen port for the network
	// we are to connect to.
	if len(activeConfig.Listeners) == 0 {
		activeConfig.Listeners = []string{
			net.JoinHostPort("", activeConfig.NetParams().DefaultPort),
		}
	}

	// Add default port to all listener addresses if needed and remove
	// duplicate addresses.
	activeConfig.Listeners, err = network.NormalizeAddresses(activeConfig.Listeners,
		activeConfig.NetParams().DefaultPort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Add default port to all added peer addresses if needed and remove
	// duplicate addresses.
	activeConfig.AddPeers, err = network.NormalizeAddresses(activeConfig.AddPeers,
		activeConfig.NetParams().DefaultPort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	activeConfig.ConnectPeers, err = network.NormalizeAddresses(activeConfig.ConnectPeers,
		activeConfig.NetParams().DefaultPort)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Setup dial and DNS resolution (lookup) functions depending on the
	// specified options. The default is to use the standard
	// net.DialTimeout function as well as the system DNS resolver. When a
	// proxy is specified, the dial function is set to the proxy specific
	// dial function.
	activeConfig.Dial = net.DialTimeout
	activeConfig.Lookup = net.LookupIP
	if activeConfig.Proxy != "" {
		_, _, err := net.SplitHostPort(activeConfig.Proxy)
		if err != nil {
			str := "%s: Proxy address '%s' is invalid: %s"
			err := errors.Errorf(str, funcName, activeConfig.Proxy, err)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}

		proxy := &socks.Proxy{
			Addr:     activeConfig.Proxy,
			Username: activeConfig.ProxyUser,
			Password: activeConfig.ProxyPass,
		}
		activeConfig.Dial = proxy.DialTimeout
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.Warnf("%s", configFileError)
	}

	return activeConfig, remainingArgs, nil
}

// createDefaultConfigFile copies the file sample-mvcd.conf to the given
// destination path.
func createDefaultConfigFile(destinationPath string) error {
	// Create the destination directory if it does not exist
	err := os.MkdirAll(filepath.Dir(destinationPath), 0700)
	if err != nil {
		return err
	}

	// We assume sample config file path is same as binary
	path, err := filepath.Abs(filepath.Dir(os.Args[0]))
	if err != nil {
		return err
	}
	sampleConfigPath := filepath.Join(path, sampleConfigFilename)

	src, err := os.Open(sampleConfigPath)
	if err != nil {
		return err
	}
	defer src.Close()

	dest, err := os.OpenFile(destinationPath,
		os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer dest.Close()

	_, err = io.Copy(dest, src)
	return err
}
