package controllers

import (
	"net/http"

	"insanprihatin/web/db"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
)

func Health(c *gin.Context) {
	dbOK := false
	if db.DB != nil {
		if sqlDB, err := db.DB.DB(); err == nil && sqlDB.Ping() == nil {
			dbOK = true
		}
	}

	resp := gin.H{"database": dbOK}

	if vm, err := mem.VirtualMemory(); err == nil {
		resp["memoryUsedPercent"] = vm.UsedPercent
	}
	if avg, err := load.Avg(); err == nil {
		resp["load1"] = avg.Load1
	}

	status := http.StatusOK
	if !dbOK {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, resp)
}
