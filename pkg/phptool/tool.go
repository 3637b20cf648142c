// Package phptool provisions the PHP command line tools WP Starter drives,
// WP-CLI and Robo, and builds processes that run them.
//
// A tool is resolved in this order:
//
//  1. a configured executor prefix (for example "docker compose exec wp wp")
//  2. the Composer package, when installed at a sufficient version
//  3. an existing phar in the project root
//  4. a phar downloaded from the tool's release URL and verified by checksum
//
// An installed package never triggers a network request.
package phptool

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/wpstarter/wpstarter/pkg/config"
)

// Checksum algorithms, tried in the order a tool returns them.
const (
	AlgoSHA512 = "sha512"
	AlgoMD5    = "md5"
)

// PhpTool describes a PHP tool that can be installed through Composer or as a
// phar.
type PhpTool interface {
	// NiceName is the human readable name.
	NiceName() string
	// PackageName is the Composer package name.
	PackageName() string
	// PharName is the phar base name, used to find versioned phars.
	PharName() string
	// PharURL is the download URL; empty disables downloading.
	PharURL() string
	// MinVersion is the lowest acceptable package version.
	MinVersion() string
	// FilesystemBootstrap returns the file to run inside an installed package.
	FilesystemBootstrap(packagePath string) string
	// PrepareCommand turns a configured command into tool arguments.
	PrepareCommand(command string, paths *config.Paths) string
	// PharTarget is where the phar is downloaded.
	PharTarget(paths *config.Paths) string
	// ChecksumAlgorithms lists the published checksum files, in order.
	ChecksumAlgorithms() []string
}

// Descriptor is the validated static data of a tool.
type Descriptor struct {
	NiceName    string   `validate:"required"`
	PackageName string   `validate:"required,contains=/"`
	PharName    string   `validate:"required,excludesall=/"`
	PharURL     string   `validate:"omitempty,url"`
	MinVersion  string   `validate:"required,semver"`
	Algorithms  []string `validate:"dive,oneof=sha512 md5"`
}

var descriptorValidate = validator.New()

// Validate checks the static data of tool.
func Validate(tool PhpTool) error {
	d := Descriptor{
		NiceName:    tool.NiceName(),
		PackageName: tool.PackageName(),
		PharName:    tool.PharName(),
		PharURL:     tool.PharURL(),
		MinVersion:  tool.MinVersion(),
		Algorithms:  tool.ChecksumAlgorithms(),
	}
	if err := descriptorValidate.Struct(d); err != nil {
		return fmt.Errorf("invalid tool %q: %w", d.NiceName, err)
	}
	return nil
}

// DefaultWpCliVersion is the WP-CLI release downloaded when no phar exists.
const DefaultWpCliVersion = "2.11.0"

// WpCli is the WP-CLI tool.
type WpCli struct {
	// Version is the release to download, DefaultWpCliVersion when empty.
	Version string
}

func (w WpCli) version() string {
	if w.Version == "" {
		return DefaultWpCliVersion
	}
	return strings.TrimPrefix(w.Version, "v")
}

func (WpCli) NiceName() string    { return "WP CLI" }
func (WpCli) PackageName() string { return "wp-cli/wp-cli" }
func (WpCli) PharName() string    { return "wp-cli" }
func (WpCli) MinVersion() string  { return "2.0.0" }

func (w WpCli) PharURL() string {
	v := w.version()
	return fmt.Sprintf("https://github.com/wp-cli/wp-cli/releases/download/v%s/wp-cli-%s.phar", v, v)
}

func (WpCli) FilesystemBootstrap(packagePath string) string {
	return filepath.Join(packagePath, "php", "boot-fs.php")
}

// PrepareCommand strips a leading "wp" and adds --path pointing at the
// WordPress install directory unless the command already has one.
func (WpCli) PrepareCommand(command string, paths *config.Paths) string {
	command = strings.TrimSpace(command)
	if command == "wp" {
		command = ""
	}
	command = strings.TrimPrefix(command, "wp ")
	command = strings.TrimSpace(command)
	if paths == nil || strings.Contains(command, "--path=") {
		return command
	}
	path := "--path=" + ShellQuote(filepath.ToSlash(paths.WP))
	if command == "" {
		return path
	}
	return command + " " + path
}

func (w WpCli) PharTarget(paths *config.Paths) string {
	return paths.RootPath(fmt.Sprintf("wp-cli-%s.phar", w.version()))
}

func (WpCli) ChecksumAlgorithms() []string {
	return []string{AlgoSHA512, AlgoMD5}
}

// Robo is the Robo task runner.
type Robo struct{}

func (Robo) NiceName() string    { return "Robo" }
func (Robo) PackageName() string { return "consolidation/robo" }
func (Robo) PharName() string    { return "robo" }
func (Robo) PharURL() string     { return "https://robo.li/robo.phar" }
func (Robo) MinVersion() string  { return "3.0.0" }

func (Robo) FilesystemBootstrap(packagePath string) string {
	return filepath.Join(packagePath, "robo")
}

func (Robo) PrepareCommand(command string, _ *config.Paths) string {
	command = strings.TrimSpace(command)
	if command == "robo" {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(command, "robo "))
}

func (Robo) PharTarget(paths *config.Paths) string {
	return paths.RootPath("robo.phar")
}

// ChecksumAlgorithms is empty, Robo publishes no checksums.
func (Robo) ChecksumAlgorithms() []string { return nil }

// ByName returns the tool registered under name: "wp-cli" or "robo".
func ByName(name string) (PhpTool, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "wp-cli", "wpcli", "wp":
		return WpCli{}, true
	case "robo":
		return Robo{}, true
	}
	return nil, false
}

// Names lists the tools ByName knows.
func Names() []string {
	return []string{"wp-cli", "robo"}
}

// ShellQuote quotes s for a POSIX shell unless it only holds safe characters.
func ShellQuote(s string) string {
	if s != "" && strings.IndexFunc(s, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9' || strings.ContainsRune("-_./:=@+", r))
	}) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
