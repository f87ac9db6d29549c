package controllers

import "insanprihatin/web/donation"

// Donations is the shared donation service, wired up in main.
var Donations *donation.Service

func Init(s *donation.Service) {
	Donations = s
}
