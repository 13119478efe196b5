package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/fatih/color"
	json "github.com/goccy/go-json"
	"github.com/mattn/go-isatty"

	"github.com/osbuild/meta"
	_ "github.com/osbuild/meta/formats"
)

func main() {
	color.NoColor = !isatty.IsTerminal(os.Stdout.Fd())

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}
	switch os.Args[1] {
	case "validate":
		validateCmd(os.Args[2:])
	case "modules":
		modulesCmd(os.Args[2:])
	case "formats":
		formatsCmd(os.Args[2:])
	case "schema":
		schemaCmd(os.Args[2:])
	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "osbuild-validate\n\nUsage:\n"+
		"  osbuild-validate validate -root DIR [-format NAME] MANIFEST\n"+
		"  osbuild-validate modules -root DIR [-class CLASS]\n"+
		"  osbuild-validate formats\n"+
		"  osbuild-validate schema -root DIR -class CLASS [-name NAME]\n\n"+
		"MANIFEST may be a JSON or YAML manifest description file.")
}

func validateCmd(args []string) {
	fs := flag.NewFlagSet("validate", flag.ExitOnError)
	var root, format string
	fs.StringVar(&root, "root", ".", "module tree root")
	fs.StringVar(&format, "format", "", "format handler name; default is detection via the version field")
	_ = fs.Parse(args)
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	manifest, err := meta.ReadDocumentFile(fs.Arg(0))
	if err != nil {
		fatal(err)
	}

	ix := meta.NewIndex(root)
	var info *meta.FormatInfo
	if format != "" {
		info, err = ix.GetFormatInfo(format)
	} else {
		info, err = ix.DetectFormatInfo(manifest)
	}
	if err != nil {
		fatal(err)
	}
	if info == nil {
		fatal(fmt.Errorf("no format handler for %q", fs.Arg(0)))
	}

	res := info.Format.Validate(ix, manifest)
	printResult(res)
	if !res.Valid() {
		os.Exit(1)
	}
}

func modulesCmd(args []string) {
	fs := flag.NewFlagSet("modules", flag.ExitOnError)
	var root, class string
	fs.StringVar(&root, "root", ".", "module tree root")
	fs.StringVar(&class, "class", "Stage", "module class (Assembler, Input, Source, Stage)")
	_ = fs.Parse(args)

	klass, ok := meta.ParseModuleClass(class)
	if !ok {
		fatal(fmt.Errorf("unknown module class %q", class))
	}

	ix := meta.NewIndex(root)
	names, err := ix.ListModulesForClass(klass)
	if err != nil {
		fatal(err)
	}
	for _, name := range names {
		info, err := ix.GetModuleInfo(klass, name)
		if err != nil {
			fatal(err)
		}
		if info == nil {
			continue
		}
		fmt.Printf("%-40s %s\n", color.CyanString(info.Name), info.Desc)
	}
}

func formatsCmd(args []string) {
	fs := flag.NewFlagSet("formats", flag.ExitOnError)
	_ = fs.Parse(args)

	ix := meta.NewIndex(".")
	for _, name := range ix.ListFormats() {
		info, err := ix.GetFormatInfo(name)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("%-24s %-4s %s\n", color.CyanString(name), info.Version, info.Info)
	}
}

func schemaCmd(args []string) {
	fs := flag.NewFlagSet("schema", flag.ExitOnError)
	var root, class, name string
	fs.StringVar(&root, "root", ".", "module tree root")
	fs.StringVar(&class, "class", "Manifest", "schema class (Manifest or a module class)")
	fs.StringVar(&name, "name", "", "module name")
	_ = fs.Parse(args)

	klass, ok := meta.ParseModuleClass(class)
	if !ok {
		fatal(fmt.Errorf("unknown module class %q", class))
	}

	ix := meta.NewIndex(root)
	schema, err := ix.GetSchema(klass, name)
	if err != nil {
		fatal(err)
	}
	if schema.Data == nil {
		fatal(fmt.Errorf("no schema information for %s %q", class, name))
	}

	out, err := json.MarshalIndent(schema.Data, "", "  ")
	if err != nil {
		fatal(err)
	}
	fmt.Println(string(out))
}

func printResult(res *meta.ValidationResult) {
	if res.Valid() {
		color.Green("manifest is valid")
		return
	}
	fmt.Printf("%s: %d error(s)\n", color.RedString(meta.FailedTitle), res.Len())
	for _, e := range res.Errors() {
		fmt.Printf("  %s  %s\n", color.YellowString(e.ID()), e.Message)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, color.RedString("error:"), err)
	os.Exit(1)
}
