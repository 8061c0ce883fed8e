package server

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/swagger"
	_ "github.com/orbitdesk/orbitdesk-server/docs"
)

func makeDocs(app *fiber.App) {
	app.Get("/swagger/*", swagger.HandlerDefault)
}
