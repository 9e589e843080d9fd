package controllers

import (
	"pericias-backend/database"
	"pericias-backend/middlewares"
	"pericias-backend/models"
	"pericias-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type createContactDTO struct {
	FirstName     string `json:"first_name" validate:"required"`
	LastName      string `json:"last_name" validate:"required"`
	Phone         string `json:"phone" validate:"required,min=8,max=32"`
	ConsentStatus string `json:"consent_status" validate:"omitempty,oneof=granted denied pending"`
}

type updateContactDTO struct {
	FirstName     *string `json:"first_name"`
	LastName      *string `json:"last_name"`
	Phone         *string `json:"phone" validate:"omitempty,min=8,max=32"`
	ConsentStatus *string `json:"consent_status" validate:"omitempty,oneof=granted denied pending"`
}

func CreateContact(c *fiber.Ctx) error {
	var dto createContactDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	dto.Phone = utils.NormalizePhone(dto.Phone)

	if dto.ConsentStatus == "" {
		dto.ConsentStatus = models.ConsentPending
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return err
	}

	contact := models.Contact{
		FirstName:     dto.FirstName,
		LastName:      dto.LastName,
		Phone:         dto.Phone,
		ConsentStatus: dto.ConsentStatus,
		Active:        true,
	}
	if err := tenantDB.Create(&contact).Error; err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"message": "Could not create contact",
			"error":   err.Error(),
		})
	}
	return c.JSON(contact)
}

func GetContacts(c *fiber.Ctx) error {
	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return err
	}

	var contacts []models.Contact
	if err := tenantDB.Where("active = ?", true).Order("last_name, first_name").Find(&contacts).Error; err != nil {
		return err
	}
	return c.JSON(contacts)
}

func UpdateContact(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return fiber.NewError(fiber.StatusBadRequest, "invalid contact id")
	}

	var dto updateContactDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	if dto.Phone != nil {
		normalized := utils.NormalizePhone(*dto.Phone)
		dto.Phone = &normalized
	}

	tenantDB, err := database.GetTenantDB(c)
	if err != nil {
		return err
	}

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	if len(updates) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "no fields to update")
	}

	res := tenantDB.Model(&models.Contact{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "contact not found")
	}

	var contact models.Contact
	if err := tenantDB.First(&contact, id).Error; err != nil {
		return err
	}
	return c.JSON(contact)
}
