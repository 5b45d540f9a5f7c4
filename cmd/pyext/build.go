package main

import (
	"context"
	"fmt"
	"os"

	"shanhu.io/misc/errcode"

	"github.com/contriboss/python-extension-go"
)

func parseProject(args []string) (context.Context, *pyext.Project, error) {
	f := new(projectFlags)
	flags := cmdFlags.New()
	declareProjectFlags(flags, f)
	flags.ParseArgs(args)

	ctx := loggingContext(&f.log, os.Stderr)

	var manifest *pyext.Manifest
	if f.manifest != "" {
		m, err := pyext.LoadManifest(ctx, f.manifest)
		if err != nil {
			return nil, nil, errcode.Annotate(err, "load manifest")
		}
		manifest = m
	}

	p, err := pyext.NewProject(ctx, f.buildConfig(), manifest)
	if err != nil {
		return nil, nil, err
	}
	p.Generator = f.generator
	return ctx, p, nil
}

func printResults(results []*pyext.BuildResult) {
	for _, r := range results {
		if r.Success {
			continue
		}
		for _, line := range r.Output {
			fmt.Fprintln(os.Stderr, line)
		}
	}
}

func cmdConfigure(args []string) error {
	ctx, p, err := parseProject(args)
	if err != nil {
		return err
	}
	targets, err := p.Configure(ctx)
	if err != nil {
		return errcode.Annotate(err, "configure")
	}
	for _, t := range targets {
		deps := t.FoundDependencies()
		fmt.Printf(
			"%s: %d sources, optional %v, unchanged=%t\n",
			t.Name, len(t.Sources), deps, t.Unchanged,
		)
	}
	return nil
}

func build(ctx context.Context, p *pyext.Project) ([]*pyext.Target, error) {
	targets, results, err := p.Build(ctx)
	printResults(results)
	if err != nil {
		return nil, errcode.Annotate(err, "build")
	}
	return targets, nil
}

func cmdBuild(args []string) error {
	ctx, p, err := parseProject(args)
	if err != nil {
		return err
	}
	targets, err := build(ctx, p)
	if err != nil {
		return err
	}
	for _, t := range targets {
		for _, a := range t.Artifacts {
			fmt.Println(a)
		}
	}
	return nil
}

func cmdInstall(args []string) error {
	ctx, p, err := parseProject(args)
	if err != nil {
		return err
	}
	if p.Config.Prefix == "" {
		return errcode.InvalidArgf("-prefix is required")
	}
	targets, err := build(ctx, p)
	if err != nil {
		return err
	}
	installed, err := p.Install(ctx, targets)
	if err != nil {
		return errcode.Annotate(err, "install")
	}
	for _, path := range installed {
		fmt.Println(path)
	}
	return nil
}

func cmdClean(args []string) error {
	ctx, p, err := parseProject(args)
	if err != nil {
		return err
	}
	return p.Clean(ctx)
}
