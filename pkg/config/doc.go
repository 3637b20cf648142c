// Package config loads and validates the WP Starter settings of a Composer
// project.
//
// # Overview
//
// Settings come from the "extra.wpstarter" object of composer.json, merged
// with a custom config file (wpstarter.json or wpstarter.yml, read through
// viper). Every key has a validator: a value that fails validation is logged
// and replaced by the key default, so a single bad setting never stops a run.
//
// # Components
//
// Manifest: the parts of composer.json WP Starter reads.
//
// Paths: the absolute project directories (root, vendor, WordPress, its parent,
// wp-content, template directories) and helpers to build paths relative to them.
//
// Config: the validated settings, with typed getters and Append for values
// set at runtime, such as the steps selected on the command line.
//
// # Usage Example
//
//	manifest, err := config.LoadManifest(root)
//	if err != nil {
//		return err
//	}
//	paths, err := config.NewPaths(root, manifest)
//	if err != nil {
//		return err
//	}
//	raw, err := manifest.RawConfig(paths.Root)
//	if err != nil {
//		return err
//	}
//	cfg := config.New(raw, config.NewValidator(paths))
//	if cfg.Bool(config.KeyInstallWpCli) {
//		// ...
//	}
package config
