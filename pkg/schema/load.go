package schema

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bufbuild/protocompile"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
)

// FromFiles finds the root message in a set of file descriptors. The message
// may be named by full name or, if unambiguous, by its short name.
func FromFiles(files *protoregistry.Files, message string, opts ...Option) (*Schema, error) {
	if message == "" {
		message = DefaultMessage
	}

	if d, err := files.FindDescriptorByName(protoreflect.FullName(message)); err == nil {
		md, ok := d.(protoreflect.MessageDescriptor)
		if !ok {
			return nil, fmt.Errorf("%s is not a message", message)
		}
		return New(md, opts...), nil
	}

	var matches []protoreflect.MessageDescriptor
	files.RangeFiles(func(fd protoreflect.FileDescriptor) bool {
		if md := fd.Messages().ByName(protoreflect.Name(message)); md != nil {
			matches = append(matches, md)
		}
		return true
	})
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("message %s not found in schema", message)
	case 1:
		return New(matches[0], opts...), nil
	default:
		return nil, fmt.Errorf("message name %s is ambiguous, use the full name", message)
	}
}

// FromDescriptorSet builds a schema from a FileDescriptorSet.
func FromDescriptorSet(set *descriptorpb.FileDescriptorSet, message string, opts ...Option) (*Schema, error) {
	files, err := protodesc.NewFiles(set)
	if err != nil {
		return nil, fmt.Errorf("link descriptor set: %w", err)
	}
	return FromFiles(files, message, opts...)
}

// LoadDescriptorSet reads a file written by `protoc --descriptor_set_out`
// (ideally with --include_imports).
func LoadDescriptorSet(path, message string, opts ...Option) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read descriptor set: %w", err)
	}
	set := &descriptorpb.FileDescriptorSet{}
	if err := proto.Unmarshal(data, set); err != nil {
		return nil, fmt.Errorf("%s: not a descriptor set: %w", path, err)
	}
	return FromDescriptorSet(set, message, opts...)
}

// Compile parses .proto sources found on importPaths. protoFiles are named
// relative to an import path; a path to an existing file also works and
// adds its directory to the search path. The well-known google/protobuf
// imports are always available.
func Compile(ctx context.Context, importPaths, protoFiles []string, message string, opts ...Option) (*Schema, error) {
	if len(protoFiles) == 0 {
		return nil, fmt.Errorf("no .proto files to compile")
	}

	paths := append([]string(nil), importPaths...)
	names := make([]string, 0, len(protoFiles))
	for _, f := range protoFiles {
		if rel, ok := relativeTo(paths, f); ok {
			names = append(names, rel)
			continue
		}
		if _, err := os.Stat(f); err == nil {
			paths = append(paths, filepath.Dir(f))
			names = append(names, filepath.Base(f))
			continue
		}
		names = append(names, filepath.ToSlash(f))
	}

	compiler := protocompile.Compiler{
		Resolver: protocompile.WithStandardImports(&protocompile.SourceResolver{ImportPaths: paths}),
	}
	compiled, err := compiler.Compile(ctx, names...)
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", strings.Join(names, ", "), err)
	}

	files := new(protoregistry.Files)
	for _, fd := range compiled {
		if err := register(files, fd); err != nil {
			return nil, err
		}
	}
	return FromFiles(files, message, opts...)
}

func relativeTo(importPaths []string, file string) (string, bool) {
	for _, dir := range importPaths {
		rel, err := filepath.Rel(dir, file)
		if err != nil || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) {
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, rel)); err == nil {
			return filepath.ToSlash(rel), true
		}
	}
	return "", false
}

// register adds fd and its imports, dependencies first.
func register(files *protoregistry.Files, fd protoreflect.FileDescriptor) error {
	if _, err := files.FindFileByPath(fd.Path()); err == nil {
		return nil
	}
	imports := fd.Imports()
	for i := 0; i < imports.Len(); i++ {
		if err := register(files, imports.Get(i).FileDescriptor); err != nil {
			return err
		}
	}
	if err := files.RegisterFile(fd); err != nil {
		return fmt.Errorf("register %s: %w", fd.Path(), err)
	}
	return nil
}
