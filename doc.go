/*
Copyright (c) 2013-2018 The btcsuite developers
Copyright (c) 2015-2016 The Decred developers
Use of this source code is governed by an ISC
license that can be found in the LICENSE file.

Mvcd is an MVC network node written in Go.

The default options are sane for most users. This means mvcd will work 'out of
the box' for most users. However, there are also a wide variety of flags that
can be used to control it.

Usage:

	mvcd [OPTIONS]

For an up-to-date help message:

	mvcd --help

The long form of all option flags (except -C) can be specified in a configuration
file that is automatically parsed when mvcd starts up. By default, the
configuration file is located at ~/.mvcd/mvcd.conf on POSIX-style operating
systems and %LOCALAPPDATA%\mvcd\mvcd.conf on Windows. The -C (--configfile)
flag can be used to override this location.
*/
package main
