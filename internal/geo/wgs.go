package geo

import (
	"github.com/dynamicmaps/overlay/internal/model/core"
	"github.com/wroge/wgs84"
)

// LonLatFromMap treats map space as metres of a Web Mercator (EPSG:3857) grid
// anchored at origin and converts p to WGS84 longitude/latitude. Web map
// viewers use this to lay game maps over a slippy-map widget.
func LonLatFromMap(p core.Vector2, origin core.Vector2) (lon, lat float64) {
	epsg := wgs84.EPSG()
	f := epsg.Transform(3857, 4326)
	lon, lat, _ = f(p.X+origin.X, p.Y+origin.Y, 0)
	return lon, lat
}
