package scheduler

import (
	"seekplan/internal/blk"

	"github.com/sirupsen/logrus"
)

func requestLogFields(req *blk.Request, head blk.Sector) logrus.Fields {
	fields := logrus.Fields{"head": head}
	if req == nil {
		return fields
	}
	fields["request_id"] = req.ID
	fields["sector"] = req.Pos
	fields["sectors"] = req.Sectors
	fields["dir"] = req.Dir()
	fields["seek"] = blk.Distance(head, req.Pos)
	return fields
}
