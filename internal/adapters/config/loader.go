// Package config loads the project manifest, package definitions and board
// descriptors.
package config

import (
	"os"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"go.trai.ch/forge/internal/core/domain"
	"go.trai.ch/zerr"
	"gopkg.in/yaml.v3"
)

// ManifestFilename is the project manifest file name.
const ManifestFilename = "forge.toml"

// LoadManifest reads and validates a forge.toml manifest.
func LoadManifest(path string) (*domain.Manifest, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is provided by the user
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read manifest")
	}

	var dto manifestDTO
	if err := toml.Unmarshal(data, &dto); err != nil {
		return nil, zerr.Wrap(err, "failed to parse manifest")
	}

	if dto.Project.Name == "" {
		return nil, zerr.With(domain.ErrMissingField, "field", "project.name")
	}

	m := &domain.Manifest{
		Project: domain.ProjectInfo{
			Name:        dto.Project.Name,
			Version:     dto.Project.Version,
			Description: dto.Project.Description,
		},
		BoardName:      dto.Board.Name,
		BoardOptions:   dto.Board.Options,
		Jobs:           dto.Build.Jobs,
		PackageOptions: make(map[string]map[string]string),
	}
	if m.Project.Version == "" {
		m.Project.Version = "0.1.0"
	}

	names := make([]string, 0, len(dto.Packages))
	for name := range dto.Packages {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := dto.Packages[name]
		if ref.Version == "" {
			err := zerr.With(domain.ErrMissingField, "field", "packages."+name+".version")
			return nil, zerr.With(err, "package", name)
		}
		m.Packages = append(m.Packages, domain.Requirement{
			Name:       name,
			Constraint: ref.Version,
			Origin:     ManifestFilename,
		})
		if len(ref.Options) > 0 {
			m.PackageOptions[name] = ref.Options
		}
	}

	return m, nil
}

// LoadPackage reads and validates a package.toml definition.
func LoadPackage(path string) (*domain.PackageSpec, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path comes from the package universe
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read package definition")
	}

	var dto packageDTO
	if err := toml.Unmarshal(data, &dto); err != nil {
		return nil, zerr.With(zerr.Wrap(err, "failed to parse package definition"), "path", path)
	}

	spec, err := specFromDTO(&dto)
	if err != nil {
		return nil, zerr.With(err, "path", path)
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	return spec, nil
}

// LoadBoard reads a board descriptor from YAML.
func LoadBoard(path string) (*domain.Board, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is derived from the manifest board name
	if err != nil {
		return nil, zerr.Wrap(err, "failed to read board definition")
	}

	var dto boardDTO
	if err := yaml.Unmarshal(data, &dto); err != nil {
		return nil, zerr.Wrap(err, "failed to parse board definition")
	}
	if dto.Name == "" {
		return nil, zerr.With(domain.ErrMissingField, "field", "name")
	}
	if dto.Target == "" {
		return nil, zerr.With(zerr.With(domain.ErrMissingField, "field", "target"), "board", dto.Name)
	}

	return &domain.Board{
		Name:    dto.Name,
		Target:  dto.Target,
		CPU:     dto.CPU,
		Options: dto.Options,
	}, nil
}

func specFromDTO(dto *packageDTO) (*domain.PackageSpec, error) {
	spec := &domain.PackageSpec{
		Name:        dto.Package.Name,
		Version:     dto.Package.Version,
		Description: dto.Package.Description,
		License:     dto.Package.License,
		Requires:    dto.Package.Requires,
		Source: domain.SourceConfig{
			URL:    dto.Source.URL,
			SHA256: dto.Source.SHA256,
			Git:    dto.Source.Git,
			Ref: domain.GitRef{
				Tag:    dto.Source.Tag,
				Branch: dto.Source.Branch,
				Rev:    dto.Source.Rev,
			},
		},
		Build: domain.BuildConfig{
			System:        dto.Build.Type,
			ConfigureArgs: dto.Build.ConfigureArgs,
			MakeArgs:      dto.Build.MakeArgs,
			Patches:       dto.Build.Patches,
			Toolchain: domain.Toolchain{
				Kind:    domain.ToolchainKind(dto.Build.Toolchain.Kind),
				Libc:    dto.Build.Toolchain.Libc,
				Release: dto.Build.Toolchain.Release,
				URLs:    dto.Build.Toolchain.URLs,
			},
		},
		Install: domain.InstallConfig{
			Script: dto.Install.Script,
		},
	}

	for _, dep := range dto.Package.Depends {
		parsed, err := parseDependency(dep)
		if err != nil {
			return nil, zerr.With(err, "package", spec.Name)
		}
		spec.Depends = append(spec.Depends, parsed)
	}

	for _, f := range dto.Source.Files {
		spec.Source.Files = append(spec.Source.Files, domain.SourceFile{
			URL:      f.URL,
			SHA256:   f.SHA256,
			Filename: f.Filename,
		})
	}

	for _, step := range dto.Build.Steps {
		spec.Build.Steps = append(spec.Build.Steps, domain.BuildStep{
			Run:  step.Run,
			Args: step.Args,
		})
	}

	for _, rule := range dto.Install.Files {
		spec.Install.Copy = append(spec.Install.Copy, domain.CopyRule{
			Src: rule.Src,
			Dst: rule.Dst,
		})
	}

	if len(dto.Options) > 0 {
		spec.Options = make(map[string]domain.OptionDefinition, len(dto.Options))
		for name, opt := range dto.Options {
			spec.Options[name] = domain.OptionDefinition{
				Type:        domain.OptionType(opt.Type),
				Default:     opt.Default,
				Description: opt.Description,
				Choices:     opt.Choices,
				Pattern:     opt.Pattern,
				Min:         opt.Min,
				Max:         opt.Max,
			}
		}
	}

	return spec, nil
}

// parseDependency splits a "name constraint" declaration. The constraint part
// is optional and defaults to any version.
func parseDependency(raw string) (domain.Dependency, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return domain.Dependency{}, zerr.With(domain.ErrMissingField, "field", "depends")
	}
	name, constraint, found := strings.Cut(s, " ")
	if !found {
		return domain.Dependency{Name: name, Constraint: "*"}, nil
	}
	constraint = strings.TrimSpace(constraint)
	if constraint == "" {
		constraint = "*"
	}
	return domain.Dependency{Name: name, Constraint: constraint}, nil
}
