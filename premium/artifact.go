package premium

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gopkg.in/yaml.v3"
)

//go:embed artifacts/default.yaml artifacts/artifact.schema.json
var artifactFS embed.FS

const (
	defaultArtifactPath = "artifacts/default.yaml"
	artifactSchemaPath  = "artifacts/artifact.schema.json"
	embeddedSource      = "embedded:default.yaml"
)

var (
	artifactSchema = mustCompileArtifactSchema()
	messagePrinter = message.NewPrinter(language.English)
)

// Artifact is a fitted, read-only scoring model. It is compiled once and
// shared by every request; nothing mutates it after LoadArtifact returns.
type Artifact struct {
	name     string
	version  string
	source   string
	features []string
	segments []segment
}

type segment struct {
	name  string
	when  string
	cond  condition
	model model
}

// Name returns the artifact name
func (a *Artifact) Name() string { return a.name }

// Version returns the artifact version
func (a *Artifact) Version() string { return a.version }

// Source returns where the artifact was loaded from
func (a *Artifact) Source() string { return a.source }

// Dimension is the feature vector length the models expect
func (a *Artifact) Dimension() int { return len(a.features) }

// Features returns the expected slot names in order
func (a *Artifact) Features() []string {
	return append([]string(nil), a.features...)
}

// Segments returns segment names in routing order
func (a *Artifact) Segments() []string {
	names := make([]string, len(a.segments))
	for i, s := range a.segments {
		names[i] = s.name
	}
	return names
}

// Condition returns the routing expression of a segment
func (a *Artifact) Condition(name string) (string, bool) {
	for _, s := range a.segments {
		if s.name == name {
			return s.when, true
		}
	}
	return "", false
}

type artifactFile struct {
	Name        string        `yaml:"name"`
	Version     string        `yaml:"version"`
	Description string        `yaml:"description"`
	Features    []string      `yaml:"features"`
	Segments    []segmentFile `yaml:"segments"`
}

type segmentFile struct {
	Name  string    `yaml:"name"`
	When  string    `yaml:"when"`
	Model modelFile `yaml:"model"`
}

type modelFile struct {
	Type      string     `yaml:"type"`
	Intercept float64    `yaml:"intercept"`
	Weights   []float64  `yaml:"weights"`
	BaseScore float64    `yaml:"base_score"`
	Trees     []treeFile `yaml:"trees"`
}

type treeFile struct {
	Nodes []nodeFile `yaml:"nodes"`
}

type nodeFile struct {
	Leaf      *float64 `yaml:"leaf"`
	Feature   *int     `yaml:"feature"`
	Threshold float64  `yaml:"threshold"`
	Left      int      `yaml:"left"`
	Right     int      `yaml:"right"`
}

// LoadArtifactFile reads and compiles an artifact from disk
func LoadArtifactFile(path string, schema *Schema) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ArtifactUnavailableError{Source: path, Err: err}
	}
	return LoadArtifact(data, path, schema)
}

// DefaultArtifact compiles the artifact embedded in the binary
func DefaultArtifact(schema *Schema) (*Artifact, error) {
	data, err := artifactFS.ReadFile(defaultArtifactPath)
	if err != nil {
		return nil, &ArtifactUnavailableError{Source: embeddedSource, Err: err}
	}
	return LoadArtifact(data, embeddedSource, schema)
}

// LoadArtifact validates YAML bytes against the artifact JSON schema, checks
// the declared feature layout against the feature schema and compiles every
// segment. Any failure is an *ArtifactUnavailableError.
func LoadArtifact(data []byte, source string, schema *Schema) (*Artifact, error) {
	a, err := loadArtifact(data, source, schema)
	if err != nil {
		return nil, &ArtifactUnavailableError{Source: source, Err: err}
	}
	return a, nil
}

func loadArtifact(data []byte, source string, schema *Schema) (*Artifact, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("YAML parse error: %w", err)
	}
	if errs := validateArtifactDoc(doc); len(errs) > 0 {
		return nil, fmt.Errorf("artifact does not match schema: %s", strings.Join(errs, "; "))
	}

	var file artifactFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	expected := schema.FeatureNames()
	if len(file.Features) != len(expected) {
		return nil, fmt.Errorf("artifact declares %d features, schema encodes %d", len(file.Features), len(expected))
	}
	for i, name := range expected {
		if file.Features[i] != name {
			return nil, fmt.Errorf("feature %d is %q, schema encodes %q there", i, file.Features[i], name)
		}
	}

	env, err := newConditionEnv(schema)
	if err != nil {
		return nil, err
	}

	a := &Artifact{
		name:     file.Name,
		version:  file.Version,
		source:   source,
		features: file.Features,
		segments: make([]segment, 0, len(file.Segments)),
	}

	names := make(map[string]bool, len(file.Segments))
	for _, sf := range file.Segments {
		if names[sf.Name] {
			return nil, fmt.Errorf("duplicate segment %q", sf.Name)
		}
		names[sf.Name] = true

		cond, err := compileCondition(env, sf.When)
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", sf.Name, err)
		}
		m, err := compileModel(sf.Model, len(expected))
		if err != nil {
			return nil, fmt.Errorf("segment %q: %w", sf.Name, err)
		}
		a.segments = append(a.segments, segment{name: sf.Name, when: sf.When, cond: cond, model: m})
	}
	return a, nil
}

func mustCompileArtifactSchema() *jsonschema.Schema {
	raw, err := artifactFS.ReadFile(artifactSchemaPath)
	if err != nil {
		panic(fmt.Sprintf("failed to read embedded %s: %v", artifactSchemaPath, err))
	}
	schemaDoc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("failed to parse embedded %s: %v", artifactSchemaPath, err))
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("artifact.schema.json", schemaDoc); err != nil {
		panic(fmt.Sprintf("failed to add artifact schema resource: %v", err))
	}
	sch, err := compiler.Compile("artifact.schema.json")
	if err != nil {
		panic(fmt.Sprintf("failed to compile artifact schema: %v", err))
	}
	return sch
}

// validateArtifactDoc round-trips the YAML document through JSON so numbers
// reach the validator as json.Number, then collects leaf errors
func validateArtifactDoc(doc any) []string {
	raw, err := json.Marshal(doc)
	if err != nil {
		return []string{fmt.Sprintf("artifact is not JSON-compatible: %v", err)}
	}
	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return []string{fmt.Sprintf("artifact is not JSON-compatible: %v", err)}
	}

	err = artifactSchema.Validate(instance)
	if err == nil {
		return nil
	}
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return []string{fmt.Sprintf("schema: %v", err)}
	}
	var errs []string
	collectSchemaErrors(ve, &errs)
	return errs
}

func collectSchemaErrors(ve *jsonschema.ValidationError, errs *[]string) {
	if len(ve.Causes) == 0 {
		loc := "/" + strings.Join(ve.InstanceLocation, "/")
		*errs = append(*errs, fmt.Sprintf("%s: %s", loc, ve.ErrorKind.LocalizedString(messagePrinter)))
		return
	}
	for _, c := range ve.Causes {
		collectSchemaErrors(c, errs)
	}
}
