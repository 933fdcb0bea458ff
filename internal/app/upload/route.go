package upload

import "github.com/gin-gonic/gin"

// RegisterRoutes serves stored blobs read-only. Directory listings are off.
func RegisterRoutes(r gin.IRoutes, storage *LocalStorage) {
	r.StaticFS(storage.URLPrefix(), gin.Dir(storage.Root(), false))
}
