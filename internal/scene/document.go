// Package scene loads YAML scene documents and builds the grid, physics
// space and movement executors they describe.
package scene

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"tactics/navgrid/internal/geom"
)

var (
	ErrNoTiles        = errors.New("scene: no tiles")
	ErrDuplicateTile  = errors.New("scene: duplicate tile name")
	ErrUnknownTile    = errors.New("scene: unknown tile")
	ErrDuplicateActor = errors.New("scene: duplicate actor id")
	ErrUnknownActor   = errors.New("scene: unknown actor")
	ErrInvalidCommand = errors.New("scene: script command needs exactly one of move_to or stop")
)

// Vector is an [x, y, z] triple.
type Vector [3]float64

// Vec3 converts the triple into a geometry vector.
func (v Vector) Vec3() geom.Vec3 {
	return geom.Vec3{v[0], v[1], v[2]}
}

// UnmarshalYAML accepts a sequence of up to three numbers; missing
// components are zero.
func (v *Vector) UnmarshalYAML(node *yaml.Node) error {
	var values []float64
	if err := node.Decode(&values); err != nil {
		return err
	}
	if len(values) > 3 {
		return fmt.Errorf("line %d: vector has %d components, want at most 3", node.Line, len(values))
	}
	*v = Vector{}
	copy(v[:], values)
	return nil
}

// Document is the on-disk form of a scene.
type Document struct {
	Name      string         `yaml:"name" jsonschema:"title=Scene name,description=Label reported in logs"`
	Grid      GridSpec       `yaml:"grid,omitempty" jsonschema:"description=Grid-wide settings"`
	Tiles     []TileSpec     `yaml:"tiles" jsonschema:"title=Tiles,description=Walkable surfaces; ids follow list order,minItems=1,required"`
	Obstacles []ObstacleSpec `yaml:"obstacles,omitempty" jsonschema:"description=Static boxes that block sweeps between tiles"`
	Actors    []ActorSpec    `yaml:"actors,omitempty" jsonschema:"description=Actors placed on tiles at start"`
	Script    []CommandSpec  `yaml:"script,omitempty" jsonschema:"description=Scripted move commands keyed by tick"`
}

type GridSpec struct {
	TileSpacing float64 `yaml:"tile_spacing,omitempty" jsonschema:"description=Nominal distance between adjacent tile centres,minimum=0"`
}

type TileSpec struct {
	Name        string       `yaml:"name,omitempty" jsonschema:"description=Unique reference used by actors and commands"`
	Location    Vector       `yaml:"location"`
	Rotation    geom.Rotator `yaml:"rotation,omitempty"`
	Extent      Vector       `yaml:"extent" jsonschema:"description=Half-size of the tile box"`
	Cost        float64      `yaml:"cost,omitempty" jsonschema:"description=Cost of entering the tile; defaults to 1,minimum=0"`
	Modes       []string     `yaml:"modes,omitempty" jsonschema:"description=Movement modes that may enter the tile; defaults to walking"`
	PawnOffset  Vector       `yaml:"pawn_offset,omitempty" jsonschema:"description=Offset from the tile location where a pawn stands"`
	Unreachable bool         `yaml:"unreachable,omitempty" jsonschema:"description=Marks the tile as enterable by no mode"`
}

type ObstacleSpec struct {
	Name string `yaml:"name" jsonschema:"required"`
	Min  Vector `yaml:"min" jsonschema:"required"`
	Max  Vector `yaml:"max" jsonschema:"required"`
}

type ShapeSpec struct {
	Radius     float64 `yaml:"radius" jsonschema:"minimum=0"`
	HalfHeight float64 `yaml:"half_height,omitempty" jsonschema:"minimum=0"`
	Offset     Vector  `yaml:"offset,omitempty"`
}

type MovementSpec struct {
	Range        float64  `yaml:"range,omitempty" jsonschema:"description=Maximum path cost per move,minimum=0"`
	MaxSpeed     float64  `yaml:"max_speed,omitempty" jsonschema:"description=World units per second,minimum=0"`
	MaxWalkAngle float64  `yaml:"max_walk_angle,omitempty" jsonschema:"description=Steepest walkable tilt in degrees,minimum=0,maximum=90"`
	Modes        []string `yaml:"modes,omitempty"`
	Trajectory   string   `yaml:"trajectory,omitempty" jsonschema:"enum=linear,enum=catmull-rom"`
	LockRoll     *bool    `yaml:"lock_roll,omitempty"`
	LockPitch    *bool    `yaml:"lock_pitch,omitempty"`
	LockYaw      *bool    `yaml:"lock_yaw,omitempty"`
}

type ActorSpec struct {
	ID       string       `yaml:"id" jsonschema:"minLength=1,required"`
	Tile     string       `yaml:"tile" jsonschema:"description=Tile name or numeric id the actor starts on,required"`
	Facing   geom.Rotator `yaml:"facing,omitempty"`
	Movement MovementSpec `yaml:"movement,omitempty"`
	Shape    *ShapeSpec   `yaml:"shape,omitempty"`
}

// CommandSpec moves an actor on a given tick. Stop takes precedence over
// MoveTo.
type CommandSpec struct {
	Tick   uint64 `yaml:"tick"`
	Actor  string `yaml:"actor" jsonschema:"required"`
	MoveTo string `yaml:"move_to,omitempty"`
	Stop   bool   `yaml:"stop,omitempty"`
}

// Parse decodes a document and rejects unknown fields.
func Parse(data []byte) (Document, error) {
	return Load(bytes.NewReader(data))
}

// Load decodes a document from r.
func Load(r io.Reader) (Document, error) {
	var doc Document
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return Document{}, ErrNoTiles
		}
		return Document{}, fmt.Errorf("scene: decode: %w", err)
	}
	if err := doc.Validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// LoadFile reads and decodes the document at path.
func LoadFile(path string) (Document, error) {
	file, err := os.Open(path)
	if err != nil {
		return Document{}, fmt.Errorf("scene: open %s: %w", path, err)
	}
	defer file.Close()
	doc, err := Load(file)
	if err != nil {
		return Document{}, fmt.Errorf("scene: load %s: %w", path, err)
	}
	if doc.Name == "" {
		doc.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return doc, nil
}

// Validate checks references between sections without building anything.
func (doc Document) Validate() error {
	if len(doc.Tiles) == 0 {
		return ErrNoTiles
	}
	names := make(map[string]int, len(doc.Tiles))
	for i, tile := range doc.Tiles {
		if tile.Name == "" {
			continue
		}
		if first, ok := names[tile.Name]; ok {
			return fmt.Errorf("%w: %q at %d and %d", ErrDuplicateTile, tile.Name, first, i)
		}
		names[tile.Name] = i
	}

	actors := make(map[string]struct{}, len(doc.Actors))
	for _, actor := range doc.Actors {
		if actor.ID == "" {
			return fmt.Errorf("%w: empty id", ErrUnknownActor)
		}
		if _, ok := actors[actor.ID]; ok {
			return fmt.Errorf("%w: %q", ErrDuplicateActor, actor.ID)
		}
		actors[actor.ID] = struct{}{}
		if _, ok := doc.tileIndex(actor.Tile, names); !ok {
			return fmt.Errorf("%w: actor %q starts on %q", ErrUnknownTile, actor.ID, actor.Tile)
		}
	}

	for _, command := range doc.Script {
		if _, ok := actors[command.Actor]; !ok {
			return fmt.Errorf("%w: script command at tick %d names %q", ErrUnknownActor, command.Tick, command.Actor)
		}
		if command.Stop == (command.MoveTo != "") {
			return fmt.Errorf("%w: tick %d actor %q", ErrInvalidCommand, command.Tick, command.Actor)
		}
		if command.Stop {
			continue
		}
		if _, ok := doc.tileIndex(command.MoveTo, names); !ok {
			return fmt.Errorf("%w: script command at tick %d targets %q", ErrUnknownTile, command.Tick, command.MoveTo)
		}
	}
	return nil
}

func (doc Document) tileIndex(ref string, names map[string]int) (int, bool) {
	if idx, ok := names[ref]; ok {
		return idx, true
	}
	id, ok := parseTileID(ref)
	if !ok || id >= len(doc.Tiles) {
		return 0, false
	}
	return id, true
}

func parseTileID(ref string) (int, bool) {
	id, err := strconv.Atoi(ref)
	if err != nil || id < 0 {
		return 0, false
	}
	return id, true
}
