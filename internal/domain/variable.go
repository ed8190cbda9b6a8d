package domain

// Role identifies one of the five reanalysis inputs.
type Role int

const (
	Temperature Role = iota
	Salinity
	SeaSurfaceHeight
	ZonalVelocity
	MeridionalVelocity
)

// Roles lists every input in pipeline order.
var Roles = []Role{Temperature, Salinity, SeaSurfaceHeight, ZonalVelocity, MeridionalVelocity}

type roleInfo struct {
	key     string // Key in the configuration document.
	output  string // Variable name expected by MOM6.
	surface bool
}

var roleTable = map[Role]roleInfo{
	Temperature:        {key: "temperature", output: "temp"},
	Salinity:           {key: "salinity", output: "salt"},
	SeaSurfaceHeight:   {key: "sea_surface_height", output: "ssh", surface: true},
	ZonalVelocity:      {key: "zonal_velocity", output: "u"},
	MeridionalVelocity: {key: "meridional_velocity", output: "v"},
}

// Key returns the configuration key of the role.
func (r Role) Key() string { return roleTable[r].key }

// OutputName returns the target model variable name.
func (r Role) OutputName() string { return roleTable[r].output }

// Surface reports whether the role is a 2-D field.
func (r Role) Surface() bool { return roleTable[r].surface }

// Velocity reports whether the role is a velocity component.
func (r Role) Velocity() bool { return r == ZonalVelocity || r == MeridionalVelocity }

func (r Role) String() string { return r.Key() }
