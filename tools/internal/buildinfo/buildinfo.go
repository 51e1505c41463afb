// seehuhn.de/go/invoice - compose invoice summaries and merge PDF files
// Copyright (C) 2026  Jochen Voss <voss@seehuhn.de>
// Copyright (C) 2026  The seehuhn.de/go/invoice authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

// Package buildinfo reports the version of the running command line tool.
package buildinfo

import (
	"runtime/debug"

	"go.uber.org/zap"
)

// Info describes the build of the running binary.
type Info struct {
	Module   string // main module path
	Version  string // module version or abbreviated VCS revision
	Modified bool   // the VCS working tree had local changes
}

// Read returns the build information of the running binary.
// If no information is available, the zero Info is returned.
func Read() Info {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Info{}
	}

	res := Info{Module: info.Main.Path}
	if v := info.Main.Version; v != "" && v != "(devel)" {
		res.Version = v
		return res
	}

	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			res.Version = s.Value
		case "vcs.modified":
			res.Modified = s.Value == "true"
		}
	}
	if len(res.Version) > 8 {
		res.Version = res.Version[:8]
	}
	return res
}

// Short returns the tool name followed by the module version, for use in
// usage messages.
func Short(toolName string) string {
	return Read().format(toolName)
}

func (info Info) format(toolName string) string {
	if info.Version == "" {
		return toolName
	}
	v := info.Version
	if info.Modified {
		v += "+dirty"
	}
	return toolName + " (" + info.Module + " " + v + ")"
}

// Fields returns the build information as structured log fields.
func (info Info) Fields() []zap.Field {
	if info.Version == "" {
		return nil
	}
	return []zap.Field{
		zap.String("module", info.Module),
		zap.String("version", info.Version),
		zap.Bool("modified", info.Modified),
	}
}
