// Package systemd renders the service unit for the gate daemon and checks
// that an installed unit has not drifted from the one generated.
package systemd

import (
	"fmt"
	"strings"
)

// UnitOptions fill the unit template.
type UnitOptions struct {
	Binary     string // path to the stewardgate binary
	ConfigPath string // passed as --config when set
	User       string // service account, root when empty
}

// Unit returns the systemd unit for the gate daemon.
func Unit(opts UnitOptions) string {
	binary := opts.Binary
	if binary == "" {
		binary = "/usr/local/bin/stewardgate"
	}
	exec := binary + " serve --log-format json"
	if opts.ConfigPath != "" {
		exec += " --config " + opts.ConfigPath
	}

	var b strings.Builder
	b.WriteString(`[Unit]
Description=stewardgate acclimation gate
After=network-online.target
Wants=network-online.target

[Service]
Type=simple
`)
	if opts.User != "" {
		fmt.Fprintf(&b, "User=%s\n", opts.User)
	}
	fmt.Fprintf(&b, "ExecStart=%s\n", exec)
	b.WriteString(`Restart=on-failure
RestartSec=2
NoNewPrivileges=true
PrivateTmp=true
ProtectSystem=strict
StateDirectory=stewardgate

[Install]
WantedBy=multi-user.target
`)
	return b.String()
}
