package crud

// IService 单个实体的完整 CRUD 服务契约，由各操作族组合而成
type IService[ID comparable, DTO any] interface {
	Entity() string

	ICountService
	IGetService[ID, DTO]
	ISaveService[ID, DTO]
	IUpdateService[ID, DTO]
	IEditService[ID, DTO]
	IDeleteService[ID]
}
