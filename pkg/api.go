// Package pkg ties the storage, image and transfer packages together into
// the operations the command line tools offer.
package pkg

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"

	"github.com/gp2040ce/bintools/pkg/layout"
	"github.com/gp2040ce/bintools/pkg/schema"
	"github.com/gp2040ce/bintools/pkg/storage"
)

// DefaultProtoFile is compiled when only import paths are given.
const DefaultProtoFile = "config.proto"

// LayoutEnv selects the flash layout when no flag does.
const LayoutEnv = "GP2040CE_LAYOUT"

// Options select the flash layout and the configuration schema.
type Options struct {
	Layout     string
	LayoutFile string

	DescriptorSet string
	ProtoPaths    []string
	ProtoFiles    []string
	Message       string
	SettingsFile  string

	Logger hclog.Logger
}

// Toolkit carries the layout and schema every operation works with. Schema
// and Codec are nil when no schema source was given; operations that need
// to decode configuration then fail with ErrNoSchema.
type Toolkit struct {
	Layout layout.Layout
	Schema *schema.Schema
	Codec  *storage.Codec
	logger hclog.Logger
}

// New resolves the layout and loads the schema.
func New(ctx context.Context, opts Options) (*Toolkit, error) {
	logger := opts.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	l, err := LoadLayout(opts.Layout, opts.LayoutFile)
	if err != nil {
		return nil, err
	}
	logger.Debug("🗺️ Using flash layout", "layout", l.String())

	t := &Toolkit{Layout: l, logger: logger}
	s, err := LoadSchema(ctx, opts)
	switch {
	case err == ErrNoSchema:
		logger.Debug("📭 No schema given, configuration decoding disabled")
	case err != nil:
		return nil, err
	default:
		t.Schema = s
		t.Codec = storage.NewCodec(s, l, logger.Named("codec"))
	}
	return t, nil
}

// Logger returns the toolkit's logger.
func (t *Toolkit) Logger() hclog.Logger { return t.logger }

// LoadLayout picks a layout by name from the built-in table, extended by
// file when one is given. An empty name falls back to $GP2040CE_LAYOUT and
// then to the default layout.
func LoadLayout(name, file string) (layout.Layout, error) {
	table := layout.Builtin()
	if file != "" {
		var err error
		if table, err = layout.LoadFile(file); err != nil {
			return layout.Layout{}, err
		}
	}
	if name == "" {
		name = os.Getenv(LayoutEnv)
	}
	l, err := table.Lookup(name)
	if err != nil {
		return layout.Layout{}, fmt.Errorf("%w: %v", ErrUnknownLayout, err)
	}
	return l, nil
}

// LoadSchema builds the schema from a descriptor set or .proto sources, in
// that order of preference. ErrNoSchema is returned when neither is given.
func LoadSchema(ctx context.Context, opts Options) (*schema.Schema, error) {
	message := opts.Message
	var schemaOpts []schema.Option
	if opts.SettingsFile != "" {
		settings, err := schema.LoadSettings(opts.SettingsFile)
		if err != nil {
			return nil, err
		}
		schemaOpts = settings.Options()
		if message == "" {
			message = settings.Message
		}
	}
	if opts.Logger != nil {
		schemaOpts = append(schemaOpts, schema.WithLogger(opts.Logger.Named("schema")))
	}

	switch {
	case opts.DescriptorSet != "":
		return schema.LoadDescriptorSet(opts.DescriptorSet, message, schemaOpts...)
	case len(opts.ProtoFiles) > 0 || len(opts.ProtoPaths) > 0:
		files := opts.ProtoFiles
		if len(files) == 0 {
			files = []string{DefaultProtoFile}
		}
		return schema.Compile(ctx, opts.ProtoPaths, files, message, schemaOpts...)
	default:
		return nil, ErrNoSchema
	}
}

func (t *Toolkit) codec() (*storage.Codec, error) {
	if t.Codec == nil {
		return nil, ErrNoSchema
	}
	return t.Codec, nil
}
