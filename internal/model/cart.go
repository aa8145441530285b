package model

// Cart 结账时传入的购物车快照，订单核心不持久化购物车本身
type Cart struct {
	ID    string     `json:"id"`
	Items []CartItem `json:"items"`
}

// CartItem 购物车行项
type CartItem struct {
	ProductID       string    `json:"product_id"`
	Quantity        int       `json:"quantity"`
	SelectedOptions OptionMap `json:"selected_options"`
	// 选项加成后的单价
	UnitPrice float64 `json:"unit_price"`
}

// ProductDetails 商品展示信息（名称/图片），由商品目录提供
type ProductDetails struct {
	Name     string `json:"name"`
	ImageURL string `json:"image_url"`
}
