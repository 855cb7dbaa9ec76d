package osmprocessing

import "github.com/paulmach/osm"

const (
	TypeNode     = string(osm.TypeNode)
	TypeWay      = string(osm.TypeWay)
	TypeRelation = string(osm.TypeRelation)
)

const (
	RoleOuter = "outer"
	RoleInner = "inner"
)

const (
	TagName       = "name"
	TagHighway    = "highway"
	TagBoundary   = "boundary"
	TagAdminLevel = "admin_level"
)

// 0.01 degrees, roughly 1km cells at mid latitudes
const DefaultCellSize = 0.01
